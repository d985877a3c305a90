package opensearch

import (
	"fmt"
	"strings"
	"time"
)

// Config holds OpenSearch transcript sink settings. Every record becomes one
// document in Index, or in a per-day index when DailyIndex is set.
type Config struct {
	URL        string `mapstructure:"url"` // http(s)://host:9200
	Index      string `mapstructure:"index"`
	DailyIndex bool   `mapstructure:"daily-index"` // <index>-YYYY.MM.DD by record time (UTC)
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
}

func (c Config) Validate() error {
	if c.URL == "" || c.Index == "" {
		return fmt.Errorf("sink.opensearch requires url and transcript index")
	}
	if c.Index != strings.ToLower(c.Index) || strings.ContainsAny(c.Index, ` ,"*\/<>?|#`) {
		return fmt.Errorf("sink.opensearch index %q must be lowercase without spaces or special characters", c.Index)
	}
	return nil
}

// IndexFor returns the index that receives a record stamped t.
func (c Config) IndexFor(t time.Time) string {
	if !c.DailyIndex {
		return c.Index
	}
	return c.Index + "-" + t.UTC().Format("2006.01.02")
}
