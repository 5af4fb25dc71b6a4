package match

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "document code wins over metadata",
			text: "Audience: Issuers\nGLB 123 Short\nA much longer line that could also be a title",
			want: "GLB 123 Short",
		},
		{
			name: "long line",
			text: "Type: Bulletin\nNew rules for contactless transaction limits\nGLB 5",
			want: "New rules for contactless transaction limits",
		},
		{
			name: "medium line without colon",
			text: "Region: Global\nQuarterly notice\nnote: short",
			want: "Quarterly notice",
		},
		{
			name: "nothing usable",
			text: "Type: x\nshort",
			want: "Untitled document",
		},
		{
			name: "empty",
			text: "",
			want: "Untitled document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Title(tt.text))
		})
	}
}
