package timer

import "testing"

func TestCyclesSetValidate(t *testing.T) {
	cases := []struct {
		name   string
		cycles CyclesSet
		want   ConfigErrorKind
		ok     bool
	}{
		{name: "empty", cycles: nil, want: ConfigErrorEmptyCycles},
		{name: "empty name", cycles: CyclesSet{{Name: "", DurationSeconds: 1}}, want: ConfigErrorEmptyCycleName},
		{name: "zero duration", cycles: CyclesSet{{Name: "work", DurationSeconds: 0}}, want: ConfigErrorZeroDuration},
		{name: "duplicate name", cycles: CyclesSet{{Name: "work", DurationSeconds: 1}, {Name: "work", DurationSeconds: 1}}, want: ConfigErrorDuplicateCycleName},
		{name: "valid", cycles: CyclesSet{{Name: "work", DurationSeconds: 1}}, ok: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cycles.validate()
			if tc.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			cerr, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if cerr.Kind != tc.want {
				t.Fatalf("expected kind %v, got %v", tc.want, cerr.Kind)
			}
		})
	}
}
