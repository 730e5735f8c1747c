package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfm/internal/core"
	"pfm/internal/storage"
)

func TestRunCreatesUserWithBalance(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "pfm.db")

	var out bytes.Buffer
	err := run(ctx, []string{"-email", "Op@Example.com", "-password", "secret123", "-balance", "250.50", "-db", db}, strings.NewReader(""), &out)
	require.NoError(t, err, out.String())
	assert.Contains(t, out.String(), "op@example.com")

	store, err := storage.NewSQLiteStore(db, time.Second)
	require.NoError(t, err)
	defer store.Close()
	u, err := store.GetUserByEmail(ctx, "op@example.com")
	require.NoError(t, err)
	assert.Equal(t, "250.50", u.Balance.String())
}

func TestRunReadsPasswordFromStdin(t *testing.T) {
	db := filepath.Join(t.TempDir(), "pfm.db")
	var out bytes.Buffer
	err := run(context.Background(), []string{"-email", "a@example.com", "-db", db}, strings.NewReader("piped-secret\n"), &out)
	require.NoError(t, err, out.String())
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "pfm.db")
	var out bytes.Buffer

	assert.Error(t, run(ctx, nil, strings.NewReader(""), &out), "email is required")
	assert.Error(t, run(ctx, []string{"-email", "a@example.com", "-balance", "-5", "-password", "secret123", "-db", db}, strings.NewReader(""), &out))
	assert.Error(t, run(ctx, []string{"-email", "a@example.com", "-db", db}, strings.NewReader(""), &out), "empty password")

	require.NoError(t, run(ctx, []string{"-email", "a@example.com", "-password", "secret123", "-db", db}, strings.NewReader(""), &out))
	err := run(ctx, []string{"-email", "a@example.com", "-password", "secret123", "-db", db}, strings.NewReader(""), &out)
	assert.ErrorIs(t, err, core.ErrEmailTaken)
}

func TestRunRejectsPasswordBeforeOpeningStore(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "pfm.db")
	var out bytes.Buffer

	err := run(ctx, []string{"-email", "a@example.com", "-password", "123", "-db", db}, strings.NewReader(""), &out)
	assert.ErrorIs(t, err, core.ErrWeakPassword)
	err = run(ctx, []string{"-email", "a@example.com", "-db", db}, strings.NewReader(strings.Repeat("p", 80)+"\n"), &out)
	assert.ErrorIs(t, err, core.ErrPasswordTooLong)

	_, statErr := os.Stat(db)
	assert.True(t, os.IsNotExist(statErr), "no database is created for a rejected password")
}
