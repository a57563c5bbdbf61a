package web

import "testing"

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

func TestExtractKeyInformation(t *testing.T) {
	content := "The Bank is led by president John Williams and chief Sarah Jones. " +
		"The new lending policy takes effect on January 15, 2024 for all member banks. " +
		"Our community service program supports small businesses across the district. " +
		"Contact press@example.gov or call 212-555-0100 for details. " +
		"Meeting minutes were released 2024-02-01."

	info := ExtractKeyInformation(content)

	if !contains(info.Leadership, "John Williams") || !contains(info.Leadership, "Sarah Jones") {
		t.Errorf("unexpected leadership %v", info.Leadership)
	}
	if !contains(info.Dates, "January 15, 2024") || !contains(info.Dates, "2024-02-01") {
		t.Errorf("unexpected dates %v", info.Dates)
	}
	if !contains(info.ContactInfo, "press@example.gov") || !contains(info.ContactInfo, "212-555-0100") {
		t.Errorf("unexpected contact info %v", info.ContactInfo)
	}
	if len(info.Policies) == 0 {
		t.Error("expected at least one policy sentence")
	}
	if len(info.Services) == 0 {
		t.Error("expected at least one service sentence")
	}
}

func TestLimitUnique(t *testing.T) {
	in := []string{"a", "b", "a"}
	for i := 0; i < 20; i++ {
		in = append(in, string(rune('c'+i)))
	}
	out := limitUnique(in)
	if len(out) != maxFactsPerCategory {
		t.Fatalf("expected %d items, got %d", maxFactsPerCategory, len(out))
	}
	if out[0] != "a" || out[1] != "b" || out[2] != "c" {
		t.Fatalf("expected order preserved without duplicates, got %v", out)
	}
}
