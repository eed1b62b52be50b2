package backend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNumberedLines(t *testing.T) {
	out, err := parseNumberedLines("1. bonjour\n2. le monde\n3. au revoir", 3)
	require.NoError(t, err)
	require.Equal(t, []string{"bonjour", "le monde", "au revoir"}, out)
}

func TestParseNumberedLines_ReorderedAndNoise(t *testing.T) {
	raw := "Here are the translations:\n2) le monde\n1) bonjour\n"
	out, err := parseNumberedLines(raw, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"bonjour", "le monde"}, out)
}

func TestParseNumberedLines_StripsThinkBlock(t *testing.T) {
	raw := "<think>\nthe user wants two lines\n1. fake\n</think>\n1. bonjour\n2. le monde"
	out, err := parseNumberedLines(raw, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"bonjour", "le monde"}, out)
}

func TestParseNumberedLines_StripsCodeFence(t *testing.T) {
	raw := "```\n1. bonjour\n2. le monde\n```"
	out, err := parseNumberedLines(raw, 2)
	require.NoError(t, err)
	require.Equal(t, "bonjour", out[0])
}

func TestParseNumberedLines_CountMismatch(t *testing.T) {
	_, err := parseNumberedLines("1. only one", 2)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected 2")
}

func TestParseNumberedLines_DuplicateLine(t *testing.T) {
	_, err := parseNumberedLines("1. a\n1. b", 1)
	require.Error(t, err)
}

func TestParseNumberedLines_OutOfRangeIgnored(t *testing.T) {
	out, err := parseNumberedLines("1. bonjour\n7. stray", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"bonjour"}, out)
}
