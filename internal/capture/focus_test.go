package capture

import "testing"

func TestParseWMName(t *testing.T) {
	testCases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: `WM_NAME(STRING) = "iPad Mirror"`, want: "iPad Mirror"},
		{in: `WM_NAME(UTF8_STRING) = "Terminal - vim"`, want: "Terminal - vim"},
		{in: `WM_NAME(STRING) = "a "quoted" title"`, want: `a "quoted" title`},
		{in: `WM_NAME(STRING) = ""`, want: ""},
		{in: "WM_NAME:  not found.", wantErr: true},
		{in: "", wantErr: true},
	}
	for i, tc := range testCases {
		got, err := parseWMName(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%d: parseWMName(%q) succeeded, expected error", i, tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%d: parseWMName(%q) failed: %v", i, tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%d: parseWMName(%q) = %q, expected %q", i, tc.in, got, tc.want)
		}
	}
}
