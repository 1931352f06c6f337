package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint) *uint { return &v }

func TestTargetFromRefs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		postID    *uint
		commentID *uint
		want      ReactionTarget
		wantErr   bool
	}{
		{name: "post only", postID: uintPtr(3), want: PostTarget(3)},
		{name: "comment only", commentID: uintPtr(8), want: CommentTarget(8)},
		{name: "both set", postID: uintPtr(3), commentID: uintPtr(8), wantErr: true},
		{name: "neither set", wantErr: true},
		{name: "zero id", postID: uintPtr(0), wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := TargetFromRefs(tc.postID, tc.commentID)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, CodeValidation, ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseReactionKind(t *testing.T) {
	t.Parallel()

	kind, err := ParseReactionKind("")
	require.NoError(t, err)
	assert.Equal(t, ReactionLike, kind)

	kind, err = ParseReactionKind("  Helpful ")
	require.NoError(t, err)
	assert.Equal(t, ReactionHelpful, kind)

	_, err = ParseReactionKind("angry")
	require.Error(t, err)
	assert.Equal(t, CodeValidation, ErrorCode(err))
}

func TestReaction_Target(t *testing.T) {
	t.Parallel()

	r := NewReaction(CommentTarget(5), 2, ReactionFunny)
	assert.Equal(t, CommentTarget(5), r.Target())
	assert.Equal(t, "comment:5", r.Target().String())
	assert.Error(t, ReactionTarget{Type: "story", ID: 1}.Validate())
}
