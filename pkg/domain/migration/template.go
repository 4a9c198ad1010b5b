package migration

// Template returns an example request for the given migration type,
// served by the template endpoint so operators can see the expected
// record schema before building an import file.
func Template(t Type) (map[string]any, error) {
	if _, err := ParseType(string(t)); err != nil {
		return nil, err
	}

	var records []any
	switch t {
	case TypeUsers:
		records = []any{
			UserRecord{
				Username: "jsmith",
				Email:    "jsmith@example.com",
				FullName: "Jordan Smith",
			},
		}
	case TypeRoles:
		records = []any{
			RoleRecord{
				Name:        "report_viewer",
				Description: "Read-only access to reports",
			},
		}
	case TypeApplications:
		records = []any{
			ApplicationRecord{
				Name:        "Billing Portal",
				Description: "Internal billing administration",
				URL:         "https://billing.example.com",
				OwnerEmail:  "billing-team@example.com",
			},
		}
	}

	return map[string]any{
		"type":               string(t),
		"records":            records,
		"overwrite_existing": false,
		"validate_only":      false,
	}, nil
}
