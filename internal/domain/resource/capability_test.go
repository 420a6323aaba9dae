package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"resourcehub/internal/domain/auth"
)

var (
	admin    = &Caller{ID: 1, Role: auth.RoleAdmin}
	owner    = &Caller{ID: 2, Role: auth.RoleTeacher}
	stranger = &Caller{ID: 3, Role: auth.RoleTeacher}
)

func draftUpload() *Resource {
	return &Resource{OwnerID: 2, Status: StatusDraft, SourceType: SourceUpload}
}

func publishedUpload() *Resource {
	return &Resource{OwnerID: 2, Status: StatusPublished, SourceType: SourceUpload}
}

func TestCanDownload_TruthTable(t *testing.T) {
	cases := []struct {
		name   string
		caller *Caller
		res    *Resource
		want   bool
	}{
		{"admin draft", admin, draftUpload(), true},
		{"admin published", admin, publishedUpload(), true},
		{"owner draft", owner, draftUpload(), true},
		{"owner published", owner, publishedUpload(), true},
		{"stranger draft", stranger, draftUpload(), false},
		{"stranger published", stranger, publishedUpload(), true},
		{"anonymous draft", nil, draftUpload(), false},
		{"anonymous published", nil, publishedUpload(), true},
		{"anonymous published link", nil, &Resource{OwnerID: 2, Status: StatusPublished, SourceType: SourceLink}, false},
		{"stranger draft link", stranger, &Resource{OwnerID: 2, Status: StatusDraft, SourceType: SourceLink}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanDownload(tc.caller, tc.res))
		})
	}
}

func TestCanEdit_TruthTable(t *testing.T) {
	cases := []struct {
		name   string
		caller *Caller
		res    *Resource
		want   bool
	}{
		{"admin draft", admin, draftUpload(), true},
		{"admin published", admin, publishedUpload(), true},
		{"owner draft", owner, draftUpload(), true},
		{"owner published", owner, publishedUpload(), false},
		{"stranger draft", stranger, draftUpload(), false},
		{"anonymous", nil, publishedUpload(), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanEdit(tc.caller, tc.res))
		})
	}
}

func TestCanView(t *testing.T) {
	assert.True(t, CanView(nil, publishedUpload()))
	assert.False(t, CanView(nil, draftUpload()))
	assert.False(t, CanView(stranger, draftUpload()))
	assert.True(t, CanView(owner, draftUpload()))
	assert.True(t, CanView(admin, draftUpload()))
}

func TestPublishArchiveGates(t *testing.T) {
	assert.True(t, CanPublish(owner, draftUpload()))
	assert.False(t, CanPublish(owner, publishedUpload()), "already published")
	assert.False(t, CanPublish(stranger, draftUpload()))

	assert.True(t, CanArchive(admin, publishedUpload()))
	assert.False(t, CanArchive(admin, draftUpload()), "only published can be archived")
	assert.False(t, CanArchive(stranger, publishedUpload()))
}

func TestCanDelete(t *testing.T) {
	assert.True(t, CanDelete(admin, publishedUpload()))
	assert.True(t, CanDelete(owner, draftUpload()))
	assert.False(t, CanDelete(owner, publishedUpload()))
	assert.False(t, CanDelete(stranger, draftUpload()))
	assert.False(t, CanDelete(nil, publishedUpload()))
}
