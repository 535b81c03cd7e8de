package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func names(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func TestItems_StripsMarkersAndQuantities(t *testing.T) {
	text := strings.Join([]string{
		"1. Apples",
		"2) bananas",
		"- milk",
		"* cheddar cheese",
		"• bread",
		"[ ] eggs",
		"( ) rice",
		"2 lb chicken breast",
		"3 bags chips",
		"12oz coffee",
		"2 grapes",
		"2 cans tomatoes",
	}, "\n")

	got := Items(text)
	require.Equal(t, []string{
		"Apples", "bananas", "milk", "cheddar cheese", "bread", "eggs", "rice",
		"chicken breast", "chips", "coffee", "grapes", "tomatoes",
	}, names(got))

	require.Equal(t, "2 lb", got[7].Quantity)
	require.Equal(t, "3 bags", got[8].Quantity)
	require.Equal(t, "12oz", got[9].Quantity)
	require.Equal(t, "2", got[10].Quantity)
	require.Equal(t, "", got[0].Quantity)
	require.Equal(t, "1. Apples", got[0].Original)
}

func TestItems_SkipsHeadersAndNoise(t *testing.T) {
	text := strings.Join([]string{
		"WEEKLY SHOPPING RUN",
		"Grocery List",
		"Total: $45",
		"Date 2024-01-01",
		"x",
		"5",
		strings.Repeat("a", 101),
		"items for the big family dinner party",
		"OJ",
	}, "\n")

	got := Items(text)
	require.Equal(t, []string{"items for the big family dinner party", "OJ"}, names(got))
}

func TestItems_AtMostOnePerLine(t *testing.T) {
	for n := 1; n <= 40; n++ {
		var b strings.Builder
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "item number %d\n", i)
		}
		got := Items(b.String())
		require.Len(t, got, n, "plain non-blank lines map one to one")
	}

	mixed := "milk\n\n\nGROCERY LIST\n   \n- eggs\n"
	require.LessOrEqual(t, len(Items(mixed)), 6)
	require.Len(t, Items(mixed), 2)
	require.Empty(t, Items(""))
}

func TestCategory(t *testing.T) {
	cat := func(s string) string {
		if c := Category(s); c != nil {
			return *c
		}
		return ""
	}
	require.Equal(t, "produce", cat("Red Apples"))
	require.Equal(t, "dairy", cat("Greek yogurt"))
	require.Equal(t, "meat", cat("bacon"))
	require.Equal(t, "bakery", cat("sourdough bread"))
	require.Equal(t, "pantry", cat("olive oil"))
	require.Equal(t, "beverages", cat("green tea"))
	require.Equal(t, "snacks", cat("popcorn"))
	require.Equal(t, "frozen", cat("frozen pizza"))
	require.Equal(t, "cleaning", cat("dish soap"))
	// dairy is checked before frozen
	require.Equal(t, "dairy", cat("ice cream"))
	require.Equal(t, "", cat("batteries"))
}

func TestVoice(t *testing.T) {
	got := Voice("apples, bananas; milk and cheese, a,  ")
	require.Equal(t, []string{"apples", "bananas", "milk", "cheese"}, names(got))
	require.Equal(t, "dairy", *got[2].Category)
	require.Equal(t, "milk", got[2].Original)
	require.Empty(t, Voice(""))
}

func TestAllCaps(t *testing.T) {
	require.True(t, allCaps("HELLO WORLD 123"))
	require.False(t, allCaps("Hello"))
	require.False(t, allCaps("1234 5678"))
}
