package loadrun

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aanand-mishra/users-api/internal/types"
)

// SetupData is produced once by Setup and shared read-only by every VU.
type SetupData struct {
	// ReservedID is the record only the update step touches. Zero means
	// setup could not create one and updates are skipped.
	ReservedID int64
}

// Scenario is what the runner executes. Setup runs before the first VU
// starts, Iteration repeatedly on every VU, Teardown after the last VU stops.
type Scenario interface {
	Setup(ctx context.Context) (SetupData, error)
	Iteration(ctx context.Context, vu *VU, data SetupData)
	Teardown(ctx context.Context, data SetupData)
}

// ErrUnreachable is returned by Setup when the API does not answer GET /users.
var ErrUnreachable = errors.New("users api is not reachable")

// UsersScenario is the default CRUD cycle against /users.
type UsersScenario struct {
	client  *Client
	sink    *Sink
	seedIDs []int64
	sleep   time.Duration
}

// NewUsersScenario builds the scenario from a profile.
func NewUsersScenario(p *Profile, client *Client, sink *Sink) *UsersScenario {
	return &UsersScenario{
		client:  client,
		sink:    sink,
		seedIDs: p.SeedIDs,
		sleep:   p.Sleep,
	}
}

// Setup checks the API answers and creates the record reserved for updates.
func (s *UsersScenario) Setup(ctx context.Context) (SetupData, error) {
	_, resp := s.client.ListUsers(ctx, TagSetup)
	if !resp.OK(http.StatusOK) {
		if resp.Err != nil {
			return SetupData{}, fmt.Errorf("%w: %v", ErrUnreachable, resp.Err)
		}
		return SetupData{}, fmt.Errorf("%w: GET /users returned %d", ErrUnreachable, resp.Status)
	}

	u, resp := s.client.CreateUser(ctx, TagSetup, "Setup User", "setup-"+uuid.NewString()+"@example.com")
	if !resp.OK(http.StatusCreated) {
		return SetupData{}, nil
	}
	return SetupData{ReservedID: u.ID}, nil
}

// Iteration runs list, get, create, update, delete, then sleeps.
func (s *UsersScenario) Iteration(ctx context.Context, vu *VU, data SetupData) {
	users, resp := s.client.ListUsers(ctx, TagList)
	s.check(ctx, "list status is 200", resp.Status == http.StatusOK)
	s.check(ctx, "list returns array", resp.OK(http.StatusOK) && users != nil)

	id := s.seedIDs[rand.IntN(len(s.seedIDs))]
	u, resp := s.client.GetUser(ctx, TagGet, id)
	s.check(ctx, "get status is 200", resp.Status == http.StatusOK)
	s.check(ctx, "get returns matching id", resp.OK(http.StatusOK) && u.ID == id)

	name := fmt.Sprintf("Load User %d-%d", vu.ID, vu.Iteration)
	created, resp := s.client.CreateUser(ctx, TagCreate, name, "load-"+uuid.NewString()+"@example.com")
	s.check(ctx, "create status is 201", resp.Status == http.StatusCreated)
	s.check(ctx, "create returns id", resp.OK(http.StatusCreated) && created.ID > 0)

	if data.ReservedID != 0 {
		newName := fmt.Sprintf("Updated by VU %d", vu.ID)
		_, resp = s.client.UpdateUser(ctx, TagUpdate, data.ReservedID, types.UserPatch{Name: &newName})
		s.check(ctx, "update status is 200", resp.Status == http.StatusOK)
	}

	if created.ID > 0 {
		resp = s.client.DeleteUser(ctx, TagDelete, created.ID)
		s.check(ctx, "delete status is 200", resp.Status == http.StatusOK)
	}

	vu.Sleep(ctx, s.sleep)
}

// check skips recording once the run is being torn down, so interrupted
// requests do not show up as failed assertions.
func (s *UsersScenario) check(ctx context.Context, name string, ok bool) {
	if ctx.Err() != nil {
		return
	}
	s.sink.Check(name, ok)
}

// Teardown deletes the reserved record.
func (s *UsersScenario) Teardown(ctx context.Context, data SetupData) {
	if data.ReservedID == 0 {
		return
	}
	s.client.DeleteUser(ctx, TagSetup, data.ReservedID)
}
