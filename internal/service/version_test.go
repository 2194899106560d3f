package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/abteilung-service/pkg/util/errorutil"
)

func TestParseVersionToken(t *testing.T) {
	valid := map[string]int{`"0"`: 0, `"12"`: 12, `"999"`: 999, `"007"`: 7}
	for token, want := range valid {
		got, err := ParseVersionToken(token)
		require.NoError(t, err, token)
		assert.Equal(t, want, got)
	}

	for _, token := range []string{``, `12`, `"1000"`, `"a1"`, `""`, `"1`, `W/"1"`, ` "1"`, `"-1"`} {
		_, err := ParseVersionToken(token)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeVersionInvalid), token)
	}

	assert.Equal(t, `"5"`, FormatVersionToken(5))
}

func TestUpdateValidator(t *testing.T) {
	f := newFixture(t, VersionPolicyStrict)
	ctx := context.Background()
	id := f.create(t, "1-001", "Alpha", nil)
	_, err := f.write.Update(ctx, id, `"0"`, patchSatisfaction(4))
	require.NoError(t, err)

	v := NewUpdateValidator(f.repo, f.write.builder, VersionPolicyStrict)

	stored, supplied, err := v.Validate(ctx, id, `"1"`)
	require.NoError(t, err)
	assert.Equal(t, 1, supplied)
	assert.Equal(t, 1, stored.Version)
	assert.Equal(t, 4, stored.Satisfaction)

	_, _, err = v.Validate(ctx, id, `"0"`)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeVersionOutdated))

	_, _, err = v.Validate(ctx, id, `"2"`)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeVersionInvalid))

	_, _, err = v.Validate(ctx, 999, `"0"`)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	lenient := NewUpdateValidator(f.repo, f.write.builder, VersionPolicyAcceptNewer)
	_, supplied, err = lenient.Validate(ctx, id, `"2"`)
	require.NoError(t, err)
	assert.Equal(t, 2, supplied)
}

func TestMalformedTokenSkipsRepository(t *testing.T) {
	f := newFixture(t, VersionPolicyStrict)
	v := NewUpdateValidator(f.repo, f.write.builder, VersionPolicyStrict)
	_, _, err := v.Validate(context.Background(), 1, "1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeVersionInvalid))
	assert.Zero(t, f.repo.calls)
}
