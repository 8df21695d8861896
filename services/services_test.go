package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cppla/socialfeed/models"
	"github.com/cppla/socialfeed/repositories"
	"github.com/cppla/socialfeed/utils"
)

type fixture struct {
	users       *repositories.UserRepositoryInMemory
	posts       *repositories.PostRepositoryInMemory
	credentials *CredentialService
	auth        *AuthService
	post        *PostService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := repositories.NewUserRepositoryInMemory()
	posts := repositories.NewPostRepositoryInMemory()
	credentials := NewCredentialService("test-secret", time.Hour, bcrypt.MinCost)
	return &fixture{
		users:       users,
		posts:       posts,
		credentials: credentials,
		auth:        NewAuthService(users, credentials, utils.NewTokenBlacklist(nil), nil),
		post:        NewPostService(posts, users, nil),
	}
}

func (f *fixture) register(t *testing.T, username, password string) models.User {
	t.Helper()
	ctx := context.Background()
	if _, err := f.auth.Register(ctx, username, password); err != nil {
		t.Fatalf("Register(%s) failed: %v", username, err)
	}
	token, err := f.auth.Authenticate(ctx, username, password)
	if err != nil {
		t.Fatalf("Authenticate(%s) failed: %v", username, err)
	}
	u, err := f.auth.ResolveCaller(ctx, token)
	if err != nil {
		t.Fatalf("ResolveCaller failed: %v", err)
	}
	return u
}

func TestCredentialServiceHashVerify(t *testing.T) {
	c := NewCredentialService("s", time.Hour, bcrypt.MinCost)
	h1, err := c.Hash("pw123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	h2, _ := c.Hash("pw123")
	if h1 == h2 {
		t.Error("expected salted hashes to differ")
	}
	if !c.Verify("pw123", h1) || !c.Verify("pw123", h2) {
		t.Error("expected both hashes to verify")
	}
	if c.Verify("wrong", h1) {
		t.Error("wrong password verified")
	}
}

func TestCredentialServiceTokens(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := NewCredentialService("secret-a", time.Hour, bcrypt.MinCost)
	c.now = func() time.Time { return now }

	token, err := c.IssueToken(42)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	id, err := c.ResolveToken(token)
	if err != nil || id != 42 {
		t.Fatalf("ResolveToken = %d, %v", id, err)
	}

	other := NewCredentialService("secret-b", time.Hour, bcrypt.MinCost)
	other.now = c.now
	if _, err := other.ResolveToken(token); !errors.Is(err, models.ErrUnauthenticated) {
		t.Errorf("token signed with another key must fail, got %v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := c.ResolveToken(tampered); !errors.Is(err, models.ErrUnauthenticated) {
		t.Errorf("tampered token must fail, got %v", err)
	}
	if _, err := c.ResolveToken("not-a-token"); !errors.Is(err, models.ErrUnauthenticated) {
		t.Errorf("malformed token must fail, got %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := c.ResolveToken(token); !errors.Is(err, models.ErrUnauthenticated) {
		t.Errorf("expired token must fail, got %v", err)
	}
}

func TestAuthServiceFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.register(t, "alice", "pw123")
	if alice.Username != "alice" {
		t.Fatalf("expected alice, got %+v", alice)
	}

	if _, err := f.auth.Register(ctx, "alice", "other"); !errors.Is(err, models.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	if _, err := f.auth.Authenticate(ctx, "nobody", "pw"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.auth.Authenticate(ctx, "alice", "bad"); !errors.Is(err, models.ErrCredential) {
		t.Errorf("expected ErrCredential, got %v", err)
	}
	if _, err := f.auth.ResolveCaller(ctx, "garbage"); !errors.Is(err, models.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}

	orphan, _ := f.credentials.IssueToken(999)
	if _, err := f.auth.ResolveCaller(ctx, orphan); !errors.Is(err, models.ErrUnauthenticated) {
		t.Errorf("token for unknown user must be unauthenticated, got %v", err)
	}

	view, err := f.auth.GetUserByUsername(ctx, "alice")
	if err != nil || view.ID != alice.ID {
		t.Errorf("GetUserByUsername = %+v, %v", view, err)
	}
}

func TestAuthServiceLogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "pw123")

	token, _ := f.auth.Authenticate(ctx, "alice", "pw123")
	if err := f.auth.Logout(ctx, token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := f.auth.ResolveCaller(ctx, token); !errors.Is(err, models.ErrUnauthenticated) {
		t.Errorf("revoked token must be unauthenticated, got %v", err)
	}

	fresh, _ := f.auth.Authenticate(ctx, "alice", "pw123")
	if _, err := f.auth.ResolveCaller(ctx, fresh); err != nil {
		t.Errorf("new token must still work: %v", err)
	}
}

func TestAuthServiceChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "pw123")

	if err := f.auth.ChangePassword(ctx, alice.ID, "wrong", "next"); !errors.Is(err, models.ErrCredential) {
		t.Fatalf("expected ErrCredential, got %v", err)
	}
	if err := f.auth.ChangePassword(ctx, alice.ID, "pw123", "next"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if _, err := f.auth.Authenticate(ctx, "alice", "pw123"); !errors.Is(err, models.ErrCredential) {
		t.Errorf("old password must stop working, got %v", err)
	}
	if _, err := f.auth.Authenticate(ctx, "alice", "next"); err != nil {
		t.Errorf("new password must work: %v", err)
	}
}

func TestAuthServiceConcurrentChangePasswordSameOld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "pw123")

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- f.auth.ChangePassword(ctx, alice.ID, "pw123", fmt.Sprintf("next-%d", i))
		}(i)
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, models.ErrCredential):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("expected exactly one successful change, got %d", ok)
	}
	if _, err := f.auth.Authenticate(ctx, "alice", "pw123"); !errors.Is(err, models.ErrCredential) {
		t.Errorf("old password must stop working, got %v", err)
	}
}

func TestAuthServiceConcurrentRegisterSameUsername(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.auth.Register(ctx, "dave", "pw")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, models.ErrConflict):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("expected exactly one successful registration, got %d", ok)
	}
	if f.users.Len() != 1 {
		t.Errorf("expected one stored user, got %d", f.users.Len())
	}
}

func TestPostServiceExampleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "pw123")
	bob := f.register(t, "bob", "pw456")

	created, err := f.post.Create(ctx, models.PostInput{Title: "hi"}, alice)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.LikeCount != 0 || created.RepostCount != 0 || created.AuthorID != alice.ID || created.Author != "alice" {
		t.Fatalf("unexpected created post: %+v", created)
	}
	if created.CreatedAt == 0 {
		t.Error("expected created_at to be set")
	}

	liked, err := f.post.Like(ctx, created.ID)
	if err != nil || liked.LikeCount != 1 {
		t.Fatalf("Like = %d, %v", liked.LikeCount, err)
	}

	repost, err := f.post.Share(ctx, created.ID, bob)
	if err != nil {
		t.Fatalf("Share failed: %v", err)
	}
	if repost.ParentID == nil || *repost.ParentID != created.ID || repost.AuthorID != bob.ID || repost.Author != "bob" {
		t.Errorf("unexpected repost: %+v", repost)
	}
	if repost.LikeCount != 0 {
		t.Errorf("repost must not inherit likes, got %d", repost.LikeCount)
	}

	original, err := f.post.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if original.RepostCount != 1 || original.LikeCount != 1 {
		t.Errorf("unexpected original counters: %+v", original)
	}

	disliked, _ := f.post.Dislike(ctx, created.ID)
	if disliked.LikeCount != 0 {
		t.Errorf("expected like count 0 after dislike, got %d", disliked.LikeCount)
	}

	list, err := f.post.List(ctx, 0, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != repost.ID || list[1].Author != "alice" {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestPostServiceOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "pw123")
	bob := f.register(t, "bob", "pw456")

	lat, lon := 55.75, 37.61
	p, _ := f.post.Create(ctx, models.PostInput{Title: "mine", Content: "text", Lat: &lat, Lon: &lon}, alice)

	if _, err := f.post.Update(ctx, p.ID, models.PostInput{Title: "hijack"}, bob); !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied on update, got %v", err)
	}
	if err := f.post.Remove(ctx, p.ID, bob); !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied on remove, got %v", err)
	}
	if _, err := f.post.AttachImage(ctx, p.ID, "img.png", bob); !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied on attach, got %v", err)
	}
	if err := f.post.CheckOwner(ctx, p.ID, bob); !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied from CheckOwner, got %v", err)
	}
	if err := f.post.CheckOwner(ctx, p.ID, alice); err != nil {
		t.Errorf("author must pass CheckOwner: %v", err)
	}
	if err := f.post.CheckOwner(ctx, p.ID+100, alice); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound from CheckOwner, got %v", err)
	}
	got, err := f.post.Get(ctx, p.ID)
	if err != nil || got.Title != "mine" || got.ImageID != nil {
		t.Errorf("denied calls must not mutate: %+v, %v", got, err)
	}

	_, _ = f.post.Like(ctx, p.ID)
	updated, err := f.post.Update(ctx, p.ID, models.PostInput{Title: "edited"}, alice)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Title != "edited" || updated.Lat != nil || updated.LikeCount != 1 || updated.AuthorID != alice.ID || updated.CreatedAt != p.CreatedAt {
		t.Errorf("update must replace editable fields only: %+v", updated)
	}

	withImage, err := f.post.AttachImage(ctx, p.ID, "img.png", alice)
	if err != nil || withImage.ImageID == nil || *withImage.ImageID != "img.png" || withImage.Title != "edited" {
		t.Errorf("AttachImage = %+v, %v", withImage, err)
	}

	if err := f.post.Remove(ctx, p.ID, alice); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := f.post.Get(ctx, p.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound after remove, got %v", err)
	}
	if err := f.post.Remove(ctx, p.ID, alice); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound removing twice, got %v", err)
	}
}

func TestPostServiceUpdateDoesNotLoseConcurrentLikes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "pw123")
	p, _ := f.post.Create(ctx, models.PostInput{Title: "t"}, alice)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := f.post.Like(ctx, p.ID); err != nil {
				t.Error(err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := f.post.Update(ctx, p.ID, models.PostInput{Title: "t2"}, alice); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, _ := f.post.Get(ctx, p.ID)
	if got.LikeCount != n {
		t.Errorf("expected %d likes, got %d", n, got.LikeCount)
	}
}

// countingUsers records how many batch lookups the post service performs.
type countingUsers struct {
	repositories.UserRepository
	mu    sync.Mutex
	calls int
}

func (c *countingUsers) GetByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.UserRepository.GetByIDs(ctx, ids)
}

func TestPostServiceListBatchesAuthorLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "pw123")
	bob := f.register(t, "bob", "pw456")
	for i := 0; i < 5; i++ {
		_, _ = f.post.Create(ctx, models.PostInput{Title: "a"}, alice)
		_, _ = f.post.Create(ctx, models.PostInput{Title: "b"}, bob)
	}

	users := &countingUsers{UserRepository: f.users}
	svc := NewPostService(f.posts, users, nil)
	list, err := svc.List(ctx, 0, 100)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 10 {
		t.Fatalf("expected 10 posts, got %d", len(list))
	}
	if users.calls != 1 {
		t.Errorf("expected a single batched lookup, got %d", users.calls)
	}
	for _, v := range list {
		if v.Author == "" {
			t.Errorf("post %d missing author", v.ID)
		}
	}

	empty, err := svc.List(ctx, 50, 10)
	if err != nil || len(empty) != 0 {
		t.Errorf("out of range page = %v, %v", empty, err)
	}
}

func TestPostServiceNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "pw123")

	if _, err := f.post.Get(ctx, 1); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Get: %v", err)
	}
	if _, err := f.post.Like(ctx, 1); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Like: %v", err)
	}
	if _, err := f.post.Share(ctx, 1, alice); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Share: %v", err)
	}
	if _, err := f.post.Update(ctx, 1, models.PostInput{Title: "x"}, alice); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Update: %v", err)
	}
}
