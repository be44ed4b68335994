package planning

import (
	"fmt"
	"time"
)

// DefaultNamePrefix prefixes every trigger name unless configured otherwise.
const DefaultNamePrefix = "crypto-forecast"

const nameTimeLayout = "20060102T1504"

// TriggerName builds the deterministic name of one planned trigger. The fire
// time is truncated to the minute, so re-planning the same survey and base
// date always yields the same name.
func TriggerName(prefix string, surveyID, definitionID int64, fireAt time.Time) string {
	if prefix == "" {
		prefix = DefaultNamePrefix
	}
	return fmt.Sprintf("%s-%d-%d-%s", prefix, surveyID, definitionID, fireAt.UTC().Truncate(time.Minute).Format(nameTimeLayout))
}
