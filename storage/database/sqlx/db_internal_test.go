package sqlxrepos

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-notifications/core"
)

func TestLikePattern(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Fees", want: "%fees%"},
		{in: "100%", want: `%100\%%`},
		{in: "a_b", want: `%a\_b%`},
		{in: `C:\x`, want: `%c:\\x%`},
		{in: "École", want: "%école%"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, likePattern(tt.in))
		})
	}
}

func TestOrderBy(t *testing.T) {
	tests := []struct {
		name     string
		ordering []core.DBOrdering
		want     string
	}{
		{name: "none", want: " ORDER BY id ASC"},
		{
			name:     "created_at",
			ordering: []core.DBOrdering{{Field: "created_at"}},
			want:     " ORDER BY created_at DESC, id ASC",
		},
		{
			name:     "read_at",
			ordering: []core.DBOrdering{{Field: "read_at", Ascending: true}},
			want:     " ORDER BY (read_at IS NULL) ASC, read_at ASC, id ASC",
		},
		{
			name:     "unknown field ignored",
			ordering: []core.DBOrdering{{Field: "message; DROP TABLE notification"}, {Field: "title", Ascending: true}},
			want:     " ORDER BY title ASC, id ASC",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderBy(tt.ordering))
		})
	}
}
