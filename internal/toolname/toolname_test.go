package toolname_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jojoalpha/agent-harness/internal/toolname"
)

func TestParseValid(t *testing.T) {
	n, err := toolname.Parse("defi/paper_trading")
	require.NoError(t, err)
	require.Equal(t, "defi", n.Bundle())
	require.Equal(t, "paper_trading", n.Local())
	require.Equal(t, "defi/paper_trading", n.String())
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := []string{
		"",
		"no-slash",
		"defi/",
		"/paper_trading",
		"defi/paper_trading/extra",
		"Defi/PaperTrading",
		"defi/paper-trading",
	}
	for _, c := range cases {
		_, err := toolname.Parse(c)
		require.Errorf(t, err, "expected %q to be invalid", c)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	n := toolname.MustParse("defi/odos_swap")
	b, err := json.Marshal(n)
	require.NoError(t, err)
	require.Equal(t, `"defi/odos_swap"`, string(b))

	var out toolname.Name
	require.NoError(t, json.Unmarshal(b, &out))
	require.Equal(t, n, out)
}
