package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/civic-budget/internal/model"
)

// A fresh deployment has no periods and no staff besides the seeded
// account. The seeded account must be able to open submissions so that
// citizens can file projects.
func TestSeededStaffOpensSubmissions(t *testing.T) {
	for _, role := range []model.Role{model.RoleModerator, model.RoleAdmin} {
		t.Run(string(role), func(t *testing.T) {
			ctx := context.Background()
			f := newProjectFixture(false)
			accounts := NewAccountService(f.users, 4)
			accounts.Now = fixedNow

			created, err := accounts.SeedAdmin(ctx, "admin@email.com", "pw", "Admin", role, 999)
			require.NoError(t, err)
			require.True(t, created)
			staff, err := f.users.GetByEmail(ctx, "admin@email.com")
			require.NoError(t, err)
			seeded := Principal{ID: staff.ID, Role: staff.Role}

			ann, err := accounts.Register(ctx, Registration{Email: "ann@email.com", Password: "secret1", Name: "Ann"})
			require.NoError(t, err)
			citizen := Principal{ID: ann.ID, Role: ann.Role}

			_, err = f.svc.CreateProject(ctx, citizen, validFields())
			require.True(t, IsKind(err, KindSubmissionClosed))

			_, err = f.svc.Periods.Create(ctx, seeded, NewPeriod{
				Type: model.PeriodSubmission, Title: "Spring intake",
				StartDate: t0.Add(-time.Hour), EndDate: t0.Add(7 * 24 * time.Hour),
			})
			require.NoError(t, err)

			p, err := f.svc.CreateProject(ctx, citizen, validFields())
			require.NoError(t, err)
			assert.Equal(t, model.StatusPendingModeration, p.Status)

			err = f.svc.DeleteProject(ctx, seeded, p.ID)
			if role == model.RoleAdmin {
				assert.NoError(t, err)
			} else {
				assert.True(t, IsKind(err, KindForbidden))
			}
		})
	}
}
