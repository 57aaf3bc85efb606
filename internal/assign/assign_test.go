package assign

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/connect-cli/internal/model"
)

var leaders = []model.Leader{
	{ID: "l-youth", Name: "Dana", Categories: []model.VolunteerCategory{model.CategoryYouth}},
	{ID: "l-kids", Name: "Eli", Categories: []model.VolunteerCategory{model.CategoryKidsMinistry}},
	{ID: "l-both", Name: "Fran", Categories: []model.VolunteerCategory{model.CategoryYouth, model.CategoryKidsMinistry}},
	{ID: "l-none", Name: "Gil"},
}

func ids(ls []model.Leader) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.ID)
	}
	return out
}

func TestEligibleLeaders(t *testing.T) {
	tests := []struct {
		name     string
		category model.VolunteerCategory
		want     []string
	}{
		{"youth", model.CategoryYouth, []string{"l-youth", "l-both"}},
		{"kids", model.CategoryKidsMinistry, []string{"l-kids", "l-both"}},
		{"nobody covers", model.CategoryParking, []string{}},
		{"empty category", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(EligibleLeaders(tt.category, leaders)))
		})
	}
}

func TestEligibleLeaders_NilList(t *testing.T) {
	assert.Empty(t, EligibleLeaders(model.CategoryYouth, nil))
}

func TestReconcile_YouthToKidsClearsYouthOnlyLeader(t *testing.T) {
	kept, cleared := Reconcile(model.CategoryKidsMinistry, "l-youth", leaders)
	assert.Empty(t, kept)
	assert.True(t, cleared)
}

func TestReconcile_KeepsLeaderCoveringBoth(t *testing.T) {
	kept, cleared := Reconcile(model.CategoryKidsMinistry, "l-both", leaders)
	assert.Equal(t, "l-both", kept)
	assert.False(t, cleared)
}

func TestReconcile_NoSelection(t *testing.T) {
	kept, cleared := Reconcile(model.CategoryYouth, "", leaders)
	assert.Empty(t, kept)
	assert.False(t, cleared)
}

func TestReconcile_UnknownLeaderDropped(t *testing.T) {
	kept, cleared := Reconcile(model.CategoryYouth, "gone", leaders)
	assert.Empty(t, kept)
	assert.True(t, cleared)
}

func TestIsEligible(t *testing.T) {
	assert.True(t, IsEligible(model.CategoryYouth, "l-youth", leaders))
	assert.False(t, IsEligible(model.CategoryYouth, "l-kids", leaders))
	assert.False(t, IsEligible(model.CategoryYouth, "", leaders))
}
