package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnTengye/cvintake/backend/extract"
	"github.com/AnTengye/cvintake/backend/middleware"
)

// execute runs rootCmd with args and returns stdout and stderr
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		tokenSubject, tokenRole, tokenHours = "", middleware.RoleAdmin, 0
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "cvextract", rootCmd.Use)

	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "url")
	assert.Contains(t, names, "file")
	assert.Contains(t, names, "token")
}

func TestFileCmd_Executes(t *testing.T) {
	path := writeFile(t, "cv.txt", "Education\nBSc Computer Science, XYZ University\nSkills\nGo, SQL, Kubernetes\n")

	out, _, err := execute(t, "file", path, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	var data extract.ExtractedCVData
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	assert.Equal(t, []string{"BSc Computer Science, XYZ University"}, data.Education)
	assert.Equal(t, []string{"Go, SQL, Kubernetes"}, data.Qualifications)
	assert.Empty(t, data.Projects)
}

func TestFileCmd_MissingFile(t *testing.T) {
	_, _, err := execute(t, "file", filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestURLCmd_FallsBackToDirectFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Projects\nBuilt a payments platform in Go\n"))
	}))
	defer server.Close()

	// No pdfco.api_key, so retrieval goes straight to the document URL
	cfgPath := writeFile(t, "config.yaml", "extract:\n  fetch_timeout: 5s\n")

	out, _, err := execute(t, "url", server.URL+"/cv.txt", "--config", cfgPath)
	require.NoError(t, err)

	var data extract.ExtractedCVData
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	assert.Equal(t, []string{"Built a payments platform in Go"}, data.Projects)
}

func TestURLCmd_RejectsNonHTTP(t *testing.T) {
	_, _, err := execute(t, "url", "file:///etc/passwd")
	assert.Error(t, err)
}

func TestTokenCmd_Executes(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", "auth:\n  jwt_secret: cli-secret\n")

	out, stderr, err := execute(t, "token", "--subject", "cron", "--role", "scheduler", "--hours", "2", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, stderr, "expires")

	claims := &middleware.Claims{}
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out), claims, func(*jwt.Token) (interface{}, error) {
		return []byte("cli-secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cron", claims.Subject)
	assert.Equal(t, middleware.RoleScheduler, claims.Role)
}

func TestTokenCmd_Errors(t *testing.T) {
	withSecret := writeFile(t, "config.yaml", "auth:\n  jwt_secret: cli-secret\n")
	noSecret := writeFile(t, "empty.yaml", "log:\n  level: warn\n")

	tests := []struct {
		name string
		args []string
	}{
		{"missing subject", []string{"token", "--config", withSecret}},
		{"unknown role", []string{"token", "--subject", "x", "--role", "root", "--config", withSecret}},
		{"no secret", []string{"token", "--subject", "x", "--config", noSecret}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
