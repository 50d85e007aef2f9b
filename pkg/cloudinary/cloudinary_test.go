package cloudinary

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestBuildPublicID(t *testing.T) {
	at := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		want string
	}{
		{"certificates_room3_activity7_position_individual.pptx", "certificates_room3_activity7_position_individual-20240601T093000.pptx"},
		{"Room 3 Deck.PPTX", "Room-3-Deck-20240601T093000.pptx"},
		{"../../etc/passwd", "passwd-20240601T093000.pptx"},
		{"!!!.pptx", "deck-20240601T093000.pptx"},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, buildPublicID(tc.name, at), tc.name)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)

	archive, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret", Folder: "/participation/certificates/"}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "participation/certificates", archive.folder)
}
