package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures Short, Full and UserAgent agree with each other.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.NotEmpty(t, Revision())
	require.True(t, strings.HasPrefix(Full(), Name+" "+Short()+" "))
	require.Contains(t, Full(), runtime.Version())
	require.Equal(t, Name+"/"+Short(), UserAgent())
}

// TestVersionCommand prints the full and the short form.
func TestVersionCommand(t *testing.T) {
	t.Parallel()

	for args, want := range map[string]string{
		"version":         Full() + "\n",
		"version --short": Short() + "\n",
	} {
		root := &cobra.Command{Use: Name}
		AttachCobraVersionCommand(root)

		var out strings.Builder

		root.SetOut(&out)
		root.SetArgs(strings.Fields(args))

		require.NoError(t, root.Execute(), args)
		require.Equal(t, want, out.String(), args)
	}
}
