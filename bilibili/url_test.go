package bilibili

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBVID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "bare bvid",
			in:   "BV1xx411c7mD",
			want: "BV1xx411c7mD",
		},
		{
			name: "video url",
			in:   "https://www.bilibili.com/video/BV1xx411c7mD",
			want: "BV1xx411c7mD",
		},
		{
			name: "url with query and fragment",
			in:   "https://www.bilibili.com/video/BV1xx411c7mD/?spm_id_from=333.999&t=42#reply",
			want: "BV1xx411c7mD",
		},
		{
			name: "surrounding whitespace",
			in:   "  BV1xx411c7mD\n",
			want: "BV1xx411c7mD",
		},
		{
			name:    "no bvid",
			in:      "https://www.bilibili.com/",
			wantErr: true,
		},
		{
			name:    "empty",
			in:      "",
			wantErr: true,
		},
		{
			name:    "too short",
			in:      "BV1xx411",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBVID(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalURL(t *testing.T) {
	assert.Equal(t,
		"https://www.bilibili.com/video/BV1xx411c7mD",
		CanonicalURL("BV1xx411c7mD"))
}
