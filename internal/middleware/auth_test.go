package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/mmynk/grouporder/internal/auth"
	"github.com/mmynk/grouporder/internal/models"
)

func TestBearer(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "valid", header: "Bearer abc.def", want: "abc.def"},
		{name: "missing", header: "", wantErr: auth.ErrMissingToken},
		{name: "wrong scheme", header: "Basic abc", wantErr: auth.ErrInvalidToken},
		{name: "extra parts", header: "Bearer a b", wantErr: auth.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Authorization", tt.header)
			}
			got, err := bearer(h)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("token = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIdentityFrom(t *testing.T) {
	if _, ok := IdentityFrom(context.Background()); ok {
		t.Error("expected no identity on a bare context")
	}
	if _, ok := IdentityFrom(WithIdentity(context.Background(), models.Identity{})); ok {
		t.Error("an identity without a key is not authenticated")
	}

	ctx := WithIdentity(context.Background(), models.Identity{Key: "ana@example.com", DisplayName: "Ana"})
	who, ok := IdentityFrom(ctx)
	if !ok || who.DisplayName != "Ana" {
		t.Errorf("IdentityFrom = %+v, %v", who, ok)
	}
	if GetEmail(ctx) != "ana@example.com" {
		t.Errorf("GetEmail = %q", GetEmail(ctx))
	}
}
