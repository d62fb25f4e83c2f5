package auth

import "strings"

type StaffPermission string

const (
	PermOrders     StaffPermission = "orders"
	PermPayments   StaffPermission = "payments"
	PermMenu       StaffPermission = "menu"
	PermInventory  StaffPermission = "inventory"
	PermForecasts  StaffPermission = "forecasts"
	PermEmployees  StaffPermission = "employees"
	PermShifts     StaffPermission = "shifts"
	PermAttendance StaffPermission = "attendance"
	PermPayroll    StaffPermission = "payroll"
	PermReports    StaffPermission = "reports"
)

var apiPermissionMap = map[string]StaffPermission{
	"/api/owner/orders":                        PermOrders,
	"/api/owner/payments":                      PermPayments,
	"/api/owner/menu":                          PermMenu,
	"/api/owner/ingredients":                   PermInventory,
	"/api/owner/stock":                         PermInventory,
	"/api/owner/stock/predictions":             PermForecasts,
	"/api/owner/stock/reorder-recommendations": PermForecasts,
	"/api/owner/employees":                     PermEmployees,
	"/api/owner/shifts":                        PermShifts,
	"/api/owner/attendance":                    PermAttendance,
	"/api/owner/payroll":                       PermPayroll,
	"/api/owner/reports":                       PermReports,
	"/api/owner/dashboard":                     PermReports,
}

// GetPermissionForAPI resolves the permission guarding a request path.
// Longest matching prefix wins; method-qualified keys ("PUT /path") beat
// unqualified ones at equal length.
func GetPermissionForAPI(path string, method string) *StaffPermission {
	method = strings.ToUpper(strings.TrimSpace(method))

	var bestPath string
	var bestPerm *StaffPermission
	var bestMethodSpecific bool

	for key, perm := range apiPermissionMap {
		keyMethod := ""
		keyPath := key
		methodSpecific := false
		if strings.Contains(key, " ") {
			parts := strings.SplitN(key, " ", 2)
			keyMethod = strings.ToUpper(strings.TrimSpace(parts[0]))
			keyPath = strings.TrimSpace(parts[1])
			methodSpecific = true
			if method == "" || method != keyMethod {
				continue
			}
		}

		if !strings.HasPrefix(path, keyPath) {
			continue
		}

		if bestPerm == nil || len(keyPath) > len(bestPath) || (len(keyPath) == len(bestPath) && methodSpecific && !bestMethodSpecific) {
			bestPath = keyPath
			bestMethodSpecific = methodSpecific
			permCopy := perm
			bestPerm = &permCopy
		}
	}

	return bestPerm
}
