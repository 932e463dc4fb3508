package imagegen

import "testing"

func TestCheckPrompt(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		text   string
		reject bool
	}{
		{name: "ok", text: "красивый закат над морем"},
		{name: "ok_short_english", text: "cat"},
		{name: "too_short", text: "hi", reject: true},
		{name: "too_short_cyrillic", text: "ок", reject: true},
		{name: "whitespace_only", text: "    ", reject: true},
		{name: "forbidden_term", text: "nsfw art", reject: true},
		{name: "forbidden_uppercase", text: "NSFW content", reject: true},
		{name: "forbidden_embedded", text: "a nude figure", reject: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := CheckPrompt(tc.text)
			if tc.reject {
				if !IsRejectedContent(err) {
					t.Fatalf("CheckPrompt(%q) = %v, want rejected content", tc.text, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CheckPrompt(%q) = %v, want nil", tc.text, err)
			}
		})
	}
}
