package profile

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/user"
)

var ErrNotFound = errors.New("profile not found")

type (
	Repository interface {
		GetProfile(ctx context.Context, userID string, exec ...core.DBExecutor) (Profile, error)
		CreateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		UpdateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
	}

	// Mirror is the external replica of profiles. It is never authoritative.
	Mirror interface {
		// FetchRemoteProfile returns nil, nil when the user has no remote row.
		FetchRemoteProfile(ctx context.Context, userID string) (*RemoteProfile, error)
		// UpsertRemoteProfile updates the remote row keyed by userID, inserting it when missing.
		UpsertRemoteProfile(ctx context.Context, userID string, rp RemoteProfile) error
	}

	Service interface {
		GetOrCreate(ctx context.Context, userID string) (Profile, error)
		Get(ctx context.Context, usr user.User) (View, error)
		Update(ctx context.Context, usr user.User, up UpdateProfile) (View, error)
		// Save writes up through exec without pushing to the mirror; call Push once exec is committed.
		Save(ctx context.Context, usr user.User, up UpdateProfile, exec core.DBExecutor) (Profile, error)
		Push(ctx context.Context, usr user.User, p Profile)
		SetAvatar(ctx context.Context, usr user.User, r io.Reader, filename string) (View, error)
	}

	service struct {
		repo      Repository
		mirror    Mirror
		fileStore core.FileStore
		validate  *validator.Validate
		logger    core.Logger
		conf      *core.Config
	}
)

var _ Service = (*service)(nil)

// NewService returns the profile service. mirror may be nil, which disables remote syncing.
func NewService(
	repo Repository,
	mirror Mirror,
	fileStore core.FileStore,
	validate *validator.Validate,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{
		repo:      repo,
		mirror:    mirror,
		fileStore: fileStore,
		validate:  validate,
		logger:    logger,
		conf:      conf,
	}
}

// GetOrCreate returns the local profile of userID, creating an empty one on first access.
func (svc *service) GetOrCreate(ctx context.Context, userID string) (Profile, error) {
	return svc.getOrCreate(ctx, userID, nil)
}

func (svc *service) getOrCreate(ctx context.Context, userID string, exec core.DBExecutor) (Profile, error) {
	p, err := svc.repo.GetProfile(ctx, userID, exec)
	if err == nil {
		return p, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Profile{}, errors.Wrap(err, "getting profile")
	}

	now := time.Now().UTC()
	p, err = svc.repo.CreateProfile(ctx, Profile{UserID: userID, CreatedAt: now, UpdatedAt: now}, exec)
	if err != nil {
		return Profile{}, errors.Wrap(err, "creating profile")
	}
	return p, nil
}

// Get resolves the profile of usr. The local profile is canonical; remote values only fill empty fields.
func (svc *service) Get(ctx context.Context, usr user.User) (View, error) {
	p, err := svc.GetOrCreate(ctx, usr.ID)
	if err != nil {
		return View{}, err
	}

	if svc.mirror != nil {
		rp, err := svc.mirror.FetchRemoteProfile(ctx, usr.ID)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("fetching remote profile of %s: %v", usr.Username, err), err, usr)
		} else if rp != nil {
			p.fillFrom(*rp)
		}
	}
	return svc.view(usr, p), nil
}

func (svc *service) view(usr user.User, p Profile) View {
	return View{
		Profile:     p,
		Username:    usr.Username,
		Email:       usr.Email,
		DisplayName: DisplayName(usr, p),
	}
}

// Update saves the local profile, then pushes it to the mirror. Mirror failures are logged, never returned.
func (svc *service) Update(ctx context.Context, usr user.User, up UpdateProfile) (View, error) {
	p, err := svc.Save(ctx, usr, up, nil)
	if err != nil {
		return View{}, err
	}
	svc.Push(ctx, usr, p)
	return svc.view(usr, p), nil
}

func (svc *service) Save(ctx context.Context, usr user.User, up UpdateProfile, exec core.DBExecutor) (Profile, error) {
	up.clean()
	if err := svc.validate.Struct(up); err != nil {
		return Profile{}, err
	}

	p, err := svc.getOrCreate(ctx, usr.ID, exec)
	if err != nil {
		return Profile{}, err
	}
	up.apply(&p)
	p.UpdatedAt = time.Now().UTC()

	if p, err = svc.repo.UpdateProfile(ctx, p, exec); err != nil {
		return Profile{}, errors.Wrap(err, "updating profile")
	}
	return p, nil
}

func (svc *service) Push(ctx context.Context, usr user.User, p Profile) {
	if svc.mirror == nil {
		return
	}
	if err := svc.mirror.UpsertRemoteProfile(ctx, usr.ID, p.Remote()); err != nil {
		svc.logger.Warn(fmt.Sprintf("syncing remote profile of %s: %v", usr.Username, err), err, usr)
	}
}

func (svc *service) SetAvatar(ctx context.Context, usr user.User, r io.Reader, filename string) (View, error) {
	p, err := svc.GetOrCreate(ctx, usr.ID)
	if err != nil {
		return View{}, err
	}

	url, err := svc.fileStore.Save(ctx, core.NewFileKey(svc.conf.Storage.AvatarsPrefix, filename), r, "")
	if err != nil {
		return View{}, errors.Wrap(err, "saving avatar")
	}
	oldAvatar := p.Avatar
	p.Avatar = url
	p.UpdatedAt = time.Now().UTC()
	if p, err = svc.repo.UpdateProfile(ctx, p); err != nil {
		return View{}, errors.Wrap(err, "updating profile")
	}

	if oldAvatar != "" {
		if err = svc.fileStore.Delete(ctx, oldAvatar); err != nil {
			svc.logger.Warn(fmt.Sprintf("deleting old avatar %s: %v", oldAvatar, err), err, usr)
		}
	}
	return svc.view(usr, p), nil
}
