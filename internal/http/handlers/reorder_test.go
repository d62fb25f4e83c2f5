package handlers

import "testing"

func TestStaleReportKeys(t *testing.T) {
	keys := []string{
		"reports/1/stock/20260825-090000.pdf",
		"reports/1/stock/20260829-120000.pdf",
		"reports/1/stock/20260820-080000.pdf",
		"reports/1/stock/20260827-100000.pdf",
	}

	stale := staleReportKeys(keys, 2)
	if len(stale) != 2 {
		t.Fatalf("expected 2 stale keys, got %d", len(stale))
	}
	if stale[0] != "reports/1/stock/20260820-080000.pdf" {
		t.Fatalf("expected oldest key first, got %s", stale[0])
	}
	if stale[1] != "reports/1/stock/20260825-090000.pdf" {
		t.Fatalf("expected second oldest key, got %s", stale[1])
	}

	if got := staleReportKeys(keys, 10); got != nil {
		t.Fatalf("expected nothing stale below the keep limit, got %d", len(got))
	}
	if got := staleReportKeys(nil, 2); got != nil {
		t.Fatalf("expected nothing stale for empty listing, got %d", len(got))
	}
	if got := staleReportKeys(keys, 0); len(got) != 4 {
		t.Fatalf("expected everything stale at keep 0, got %d", len(got))
	}
}
