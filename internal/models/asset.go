package models

// AssetType maps to the `asset_types` table.
type AssetType struct {
	AssetTypeID   int64  `gorm:"column:asset_type_id;primaryKey;autoIncrement" json:"asset_type_id"`
	AssetTypeName string `gorm:"column:asset_type_name;size:255;uniqueIndex" json:"asset_type_name"`
	Description   string `gorm:"column:description;type:text" json:"description"`
}

func (AssetType) TableName() string {
	return "asset_types"
}

// Asset maps to the `assets` table.
type Asset struct {
	AssetID     int64      `gorm:"column:asset_id;primaryKey;autoIncrement" json:"asset_id"`
	AssetTypeID int64      `gorm:"column:asset_type_id;index" json:"asset_type_id"`
	AssetName   string     `gorm:"column:asset_name;size:255;uniqueIndex" json:"asset_name"`
	AssetSymbol string     `gorm:"column:asset_symbol;size:64" json:"asset_symbol"`
	Description string     `gorm:"column:description;type:text" json:"description"`
	AssetType   *AssetType `gorm:"foreignKey:AssetTypeID;references:AssetTypeID" json:"asset_type,omitempty"`
}

func (Asset) TableName() string {
	return "assets"
}
