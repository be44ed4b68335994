package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"surveyplanner/internal/models"
)

// MigrateAndSeed ensures required tables exist and inserts the fixed query types.
func MigrateAndSeed(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	if err := seedDefaults(db); err != nil {
		return fmt.Errorf("seed defaults failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		// Reference data
		&models.AssetType{},
		&models.Asset{},
		&models.LLM{},
		&models.Prompt{},
		// Schedule templates
		&models.Schedule{},
		&models.QueryType{},
		&models.QuerySchedule{},
		&models.Survey{},
		// Worker output
		&models.Query{},
		&models.Forecast{},
	}
}

// DefaultQueryTypes are the query type names the planner knows how to
// classify.
var DefaultQueryTypes = []models.QueryType{
	{QueryTypeName: "Baseline", Description: "Live reading taken at the schedule's initial time"},
	{QueryTypeName: "Baseline Forecast", Description: "Forecast issued at the baseline for a later horizon"},
	{QueryTypeName: "Follow-up", Description: "Live reading taken when a forecast horizon elapses"},
}

func seedDefaults(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := ensureQueryTypes(tx); err != nil {
			return err
		}
		return ensureDefaultAssetType(tx)
	})
}

func ensureQueryTypes(tx *gorm.DB) error {
	for _, qt := range DefaultQueryTypes {
		var count int64
		if err := tx.Model(&models.QueryType{}).Where("query_type_name = ?", qt.QueryTypeName).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		row := qt
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func ensureDefaultAssetType(tx *gorm.DB) error {
	var count int64
	if err := tx.Model(&models.AssetType{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	row := models.AssetType{AssetTypeName: "crypto", Description: "Cryptocurrency"}
	return tx.Create(&row).Error
}
