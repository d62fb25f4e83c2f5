package auth

import "testing"

func TestGetPermissionForAPI(t *testing.T) {
	cases := []struct {
		path   string
		method string
		want   *StaffPermission
	}{
		{"/api/owner/orders", "GET", permPtr(PermOrders)},
		{"/api/owner/orders/42/status", "PATCH", permPtr(PermOrders)},
		{"/api/owner/payments/7/verify", "POST", permPtr(PermPayments)},
		{"/api/owner/ingredients/3/adjust-stock", "POST", permPtr(PermInventory)},
		{"/api/owner/stock/overview", "GET", permPtr(PermInventory)},
		{"/api/owner/stock/predictions", "GET", permPtr(PermForecasts)},
		{"/api/owner/stock/predictions/9", "GET", permPtr(PermForecasts)},
		{"/api/owner/stock/reorder-recommendations", "GET", permPtr(PermForecasts)},
		{"/api/owner/menu/5/recipe", "PUT", permPtr(PermMenu)},
		{"/api/owner/payroll/runs", "POST", permPtr(PermPayroll)},
		{"/api/owner/dashboard", "GET", permPtr(PermReports)},
		{"/api/owner/unknown", "GET", nil},
		{"/api/auth/login", "POST", nil},
	}

	for _, tc := range cases {
		got := GetPermissionForAPI(tc.path, tc.method)
		if tc.want == nil {
			if got != nil {
				t.Errorf("GetPermissionForAPI(%s %s) = %v, want nil", tc.method, tc.path, *got)
			}
			continue
		}
		if got == nil {
			t.Errorf("GetPermissionForAPI(%s %s) = nil, want %v", tc.method, tc.path, *tc.want)
			continue
		}
		if *got != *tc.want {
			t.Errorf("GetPermissionForAPI(%s %s) = %v, want %v", tc.method, tc.path, *got, *tc.want)
		}
	}
}

func permPtr(p StaffPermission) *StaffPermission {
	return &p
}
