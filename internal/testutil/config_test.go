package testutil

import "testing"

func TestDefaultTestDBConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want TestDBConfig
	}{
		{
			name: "local docker-compose defaults",
			want: TestDBConfig{Host: "localhost", Port: "55432", User: "marketgate", Password: "marketgate", DBName: "marketgate"},
		},
		{
			name: "ci overrides",
			env: map[string]string{
				"TEST_DB_HOST": "postgres",
				"TEST_DB_PORT": "5432",
				"TEST_DB_NAME": "marketgate_ci",
			},
			want: TestDBConfig{Host: "postgres", Port: "5432", User: "marketgate", Password: "marketgate", DBName: "marketgate_ci"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME"} {
				t.Setenv(k, tt.env[k])
			}
			if got := DefaultTestDBConfig(); got != tt.want {
				t.Errorf("DefaultTestDBConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTestDBConfig_DSN(t *testing.T) {
	t.Setenv("DB_SSL_MODE", "")
	cfg := TestDBConfig{Host: "db", Port: "5432", User: "mg", Password: "p@ss word", DBName: "marketgate"}
	want := "postgres://mg:p%40ss%20word@db:5432/marketgate?sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestUserInputBuilder(t *testing.T) {
	a := NewUserInput().Build()
	b := NewUserInput().WithEmail("seller@shop.test").WithBusiness("biz-1").Build()
	if a.Email == b.Email {
		t.Fatalf("expected distinct emails, got %q twice", a.Email)
	}
	if b.BusinessID != "biz-1" || b.Email != "seller@shop.test" {
		t.Errorf("builder did not apply overrides: %+v", b)
	}
}
