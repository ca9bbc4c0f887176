package hamlib

import (
	"reflect"
	"testing"
)

func TestRigctldArgs(t *testing.T) {
	tests := map[string]struct {
		cfg  ManagedConfig
		port int
		want []string
	}{
		"minimal": {
			cfg:  ManagedConfig{ModelID: 2, Device: "/dev/ttyUSB0"},
			port: 52000,
			want: []string{"-m", "2", "-r", "/dev/ttyUSB0", "-T", "127.0.0.1", "-t", "52000"},
		},
		"with baud and extras": {
			cfg:  ManagedConfig{ModelID: 3061, Device: "/dev/ttyUSB1", Baud: 19200, SerialOpts: "N8", ExtraArgs: "--vfo"},
			port: 52001,
			want: []string{"-m", "3061", "-r", "/dev/ttyUSB1", "-s", "19200", "N8", "--vfo", "-T", "127.0.0.1", "-t", "52001"},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := rigctldArgs(tc.cfg, tc.port)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("rigctldArgs() = %v; want %v", got, tc.want)
			}
		})
	}
}

func TestFindFreePort(t *testing.T) {
	port, err := findFreePort()
	if err != nil {
		t.Fatalf("findFreePort: %v", err)
	}
	if port <= 0 || port > 65535 {
		t.Errorf("port = %d; want in (0, 65535]", port)
	}
}
