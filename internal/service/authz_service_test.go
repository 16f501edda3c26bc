package service

import (
	"context"
	"testing"

	"auth-hub/internal/domain"
)

func TestAuthzService_Authorize(t *testing.T) {
	roles := newMockRoleRepo()
	svc := NewAuthzService(roles)
	ctx := context.Background()

	userRole, _ := roles.GetByName(ctx, domain.RoleUser)
	adminRole, _ := roles.GetByName(ctx, domain.RoleAdmin)

	if err := roles.Assign(ctx, "u1", userRole.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := roles.Assign(ctx, "u2", adminRole.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	cases := []struct {
		name     string
		userID   string
		required []string
		want     bool
	}{
		{"no requirement allows anyone", "u1", nil, true},
		{"matching role allowed", "u2", []string{domain.RoleAdmin}, true},
		{"or semantics across roles", "u1", []string{domain.RoleAdmin, domain.RoleUser}, true},
		{"missing role denied", "u1", []string{domain.RoleAdmin}, false},
		{"unknown user denied", "ghost", []string{domain.RoleAdmin}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.Authorize(ctx, tc.userID, tc.required)
			if err != nil {
				t.Fatalf("authorize: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
