package restart

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRebuildArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "plain invocation",
			args: []string{"/usr/bin/cabinet", "--config", "config.json"},
			want: []string{"/usr/bin/cabinet", "--config", "config.json", "--cycle-offset", "12", "--productive-offset", "4"},
		},
		{
			name: "replaces stale offsets",
			args: []string{"/usr/bin/cabinet", "--cycle-offset", "3", "--productive-offset", "1", "--verbose"},
			want: []string{"/usr/bin/cabinet", "--verbose", "--cycle-offset", "12", "--productive-offset", "4"},
		},
		{
			name: "replaces equals-form offsets",
			args: []string{"/usr/bin/cabinet", "--cycle-offset=3", "--dry-run"},
			want: []string{"/usr/bin/cabinet", "--dry-run", "--cycle-offset", "12", "--productive-offset", "4"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RebuildArgs(tt.args, 12, 4)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("RebuildArgs (-want +got):\n%s", diff)
			}
		})
	}
}
