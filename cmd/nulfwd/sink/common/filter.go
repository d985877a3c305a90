package common

import "strings"

// filter applies direction and include/exclude substring filters.
type filter struct {
	directions []string
	includes   []string
	excludes   []string
}

func (f *filter) allow(rec Record) bool {
	if len(f.directions) > 0 {
		ok := false
		for _, d := range f.directions {
			if d == rec.Direction {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.includes) > 0 {
		ok := false
		for _, inc := range f.includes {
			if inc == "" || strings.Contains(rec.Payload, inc) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, exc := range f.excludes {
		if exc != "" && strings.Contains(rec.Payload, exc) {
			return false
		}
	}
	return true
}
