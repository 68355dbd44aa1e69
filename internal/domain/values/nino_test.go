package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNINumber(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "valid",
			raw:  "AB123456C",
			want: "AB123456C",
		},
		{
			name: "normalizes case and spaces",
			raw:  "ab 12 34 56 c",
			want: "AB123456C",
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "too short",
			raw:     "AB12345C",
			wantErr: true,
		},
		{
			name:    "invalid suffix",
			raw:     "AB123456E",
			wantErr: true,
		},
		{
			name:    "disallowed first letter",
			raw:     "DA123456C",
			wantErr: true,
		},
		{
			name:    "unallocated prefix BG",
			raw:     "BG123456C",
			wantErr: true,
		},
		{
			name:    "unallocated prefix NT",
			raw:     "NT123456A",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewNINumber(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestNINumber_Masked(t *testing.T) {
	n := MustNewNINumber("AB123456C")
	assert.Equal(t, "AB******C", n.Masked())
}

func TestNewPAYEReference(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "valid",
			raw:  "123/AB456",
			want: "123/AB456",
		},
		{
			name: "normalizes case",
			raw:  " 120/ea00070 ",
			want: "120/EA00070",
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "missing office number",
			raw:     "AB456",
			wantErr: true,
		},
		{
			name:    "office number too short",
			raw:     "12/AB456",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewPAYEReference(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestPAYEReference_OfficeNumber(t *testing.T) {
	r := MustNewPAYEReference("123/AB456")
	assert.Equal(t, "123", r.OfficeNumber())
}
