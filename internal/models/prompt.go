package models

// Prompt families. Live prompts answer "what is happening now" and are used by
// Baseline and FollowUp queries; forecast prompts answer "what will happen".
const (
	PromptTypeLive     = "live"
	PromptTypeForecast = "forecast"
)

// LLM maps to the `llms` table. APIKeySecret names the environment variable
// holding the provider key; the key itself is never stored.
type LLM struct {
	LLMID        int64  `gorm:"column:llm_id;primaryKey;autoIncrement" json:"llm_id"`
	LLMName      string `gorm:"column:llm_name;size:255;uniqueIndex" json:"llm_name"`
	LLMModel     string `gorm:"column:llm_model;size:255" json:"llm_model"`
	APIURL       string `gorm:"column:api_url;size:255" json:"api_url"`
	APIKeySecret string `gorm:"column:api_key_secret;size:255" json:"api_key_secret"`
}

func (LLM) TableName() string {
	return "llms"
}

// Prompt maps to the `prompts` table.
type Prompt struct {
	PromptID      int64  `gorm:"column:prompt_id;primaryKey;autoIncrement" json:"prompt_id"`
	LLMID         int64  `gorm:"column:llm_id;index" json:"llm_id"`
	PromptName    string `gorm:"column:prompt_name;size:255" json:"prompt_name"`
	PromptText    string `gorm:"column:prompt_text;type:text" json:"prompt_text"`
	FollowupLLMID int64  `gorm:"column:followup_llm;index" json:"followup_llm"`
	PromptType    string `gorm:"column:prompt_type;size:20;index" json:"prompt_type"`
	Attribute1    string `gorm:"column:attribute_1;type:text" json:"attribute_1"`
	Attribute2    string `gorm:"column:attribute_2;type:text" json:"attribute_2"`
	Attribute3    string `gorm:"column:attribute_3;type:text" json:"attribute_3"`
	PromptVersion int    `gorm:"column:prompt_version;default:1" json:"prompt_version"`
}

func (Prompt) TableName() string {
	return "prompts"
}
