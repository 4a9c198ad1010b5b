package user

import (
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		username     string
		email        string
		passwordHash string
		wantErr      bool
	}{
		{
			name:         "valid user",
			username:     "alice",
			email:        "alice@example.com",
			passwordHash: "hash",
			wantErr:      false,
		},
		{
			name:         "empty username",
			username:     "",
			email:        "alice@example.com",
			passwordHash: "hash",
			wantErr:      true,
		},
		{
			name:         "username too short",
			username:     "al",
			email:        "alice@example.com",
			passwordHash: "hash",
			wantErr:      true,
		},
		{
			name:         "invalid email",
			username:     "alice",
			email:        "not-an-email",
			passwordHash: "hash",
			wantErr:      true,
		},
		{
			name:         "missing password hash",
			username:     "alice",
			email:        "alice@example.com",
			passwordHash: "",
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := New(tt.username, tt.email, "", tt.passwordHash)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr {
				if u.Status() != StatusActive {
					t.Errorf("New() status = %v, want %v", u.Status(), StatusActive)
				}
				if u.ID().IsZero() {
					t.Error("New() returned zero id")
				}
			}
		})
	}
}

func TestNew_NormalizesIdentifiers(t *testing.T) {
	u, err := New("  Alice  ", "Alice@Example.COM", "  Alice A  ", "hash")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if u.Username() != "alice" {
		t.Errorf("username = %q, want %q", u.Username(), "alice")
	}
	if u.Email() != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email(), "alice@example.com")
	}
	if u.FullName() != "Alice A" {
		t.Errorf("full name = %q, want %q", u.FullName(), "Alice A")
	}
}

func TestSuspendActivate(t *testing.T) {
	u, err := New("alice", "alice@example.com", "", "hash")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	u.Suspend()
	if u.IsActive() {
		t.Error("user still active after Suspend()")
	}
	if u.Status() != StatusSuspended {
		t.Errorf("status = %v, want %v", u.Status(), StatusSuspended)
	}

	u.Activate()
	if !u.IsActive() {
		t.Error("user not active after Activate()")
	}
}

func TestUpdateProfile(t *testing.T) {
	u, err := New("alice", "alice@example.com", "Alice", "hash")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := u.UpdateProfile("bad-email", "Alice"); err == nil {
		t.Error("expected error for invalid email")
	}
	if u.Email() != "alice@example.com" {
		t.Errorf("email changed on failed update: %q", u.Email())
	}

	if err := u.UpdateProfile("Alice@Corp.example.com", "Alice B"); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if u.Email() != "alice@corp.example.com" {
		t.Errorf("email = %q, want %q", u.Email(), "alice@corp.example.com")
	}
	if u.FullName() != "Alice B" {
		t.Errorf("full name = %q, want %q", u.FullName(), "Alice B")
	}
}

func TestStatusIsValid(t *testing.T) {
	if !StatusActive.IsValid() || !StatusSuspended.IsValid() {
		t.Error("known statuses reported invalid")
	}
	if Status("deleted").IsValid() {
		t.Error("unknown status reported valid")
	}
}
