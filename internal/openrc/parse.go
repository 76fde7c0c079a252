package openrc

import (
	"strings"

	"github.com/nholik/rauc-health/internal/health"
)

var headerPrefixes = []string{"Runlevel:", "Dynamic Runlevel:"}

// Parse reads rc-status output into a name → state snapshot.
//
// Each service line has the form "name [ state ]": the first field is the
// name, the second is skipped and the third is the state. Headers, blank
// lines and lines with fewer than three fields are dropped. Later lines
// overwrite earlier ones for the same name.
func Parse(text string) health.Snapshot {
	snapshot := health.Snapshot{}
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || isHeader(line) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		snapshot[fields[0]] = fields[2]
	}
	return snapshot
}

func isHeader(line string) bool {
	for _, prefix := range headerPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
