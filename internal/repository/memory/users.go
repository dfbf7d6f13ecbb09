package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/repository"
)

func (s *Store) Users() repository.UserRepository                 { return &userRepo{s: s} }
func (s *Store) Admins() repository.AdminRepository               { return &adminRepo{s: s} }
func (s *Store) Verifications() repository.VerificationRepository { return &verificationRepo{s: s} }

type userRepo struct {
	s *Store
}

func (r *userRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return domain.NewDuplicateError("user", "email", "")
		}
		if user.Phone != "" && u.Phone == user.Phone {
			return domain.NewDuplicateError("user", "phone", "")
		}
	}
	r.s.users[user.UserID] = *user
	return nil
}

func (r *userRepo) find(pred func(domain.User) bool, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if pred(u) {
			return &u, nil
		}
	}
	return nil, domain.NewNotFoundError("user", id)
}

func (r *userRepo) GetByID(_ context.Context, userID string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.UserID == userID }, userID)
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return strings.EqualFold(u.Email, email) }, email)
}

func (r *userRepo) GetByPhone(_ context.Context, phone string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return phone != "" && u.Phone == phone }, phone)
}

func (r *userRepo) GetByExternalUID(_ context.Context, uid string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return uid != "" && u.ExternalUID == uid }, uid)
}

func (r *userRepo) List(_ context.Context, filter domain.UserFilter) ([]domain.User, int, error) {
	page, perPage := domain.NormalizePage(filter.Page, filter.PerPage)
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	r.s.mu.RLock()
	var users []domain.User
	for _, u := range r.s.users {
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Name), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) &&
			!strings.Contains(u.Phone, search) {
			continue
		}
		users = append(users, u)
	}
	r.s.mu.RUnlock()

	column := filter.SortColumn()
	sort.SliceStable(users, func(i, j int) bool {
		var c int
		switch column {
		case "name":
			c = strings.Compare(users[i].Name, users[j].Name)
		case "email":
			c = strings.Compare(users[i].Email, users[j].Email)
		default:
			c = users[i].CreatedAt.Compare(users[j].CreatedAt)
		}
		if c == 0 {
			return users[i].UserID < users[j].UserID
		}
		if filter.SortDesc {
			return c > 0
		}
		return c < 0
	})

	total := len(users)
	start := (page - 1) * perPage
	if start >= total {
		return []domain.User{}, total, nil
	}
	return users[start:min(start+perPage, total)], total, nil
}

func (r *userRepo) Update(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.UserID]; !ok {
		return domain.NewNotFoundError("user", user.UserID)
	}
	r.s.users[user.UserID] = *user
	return nil
}

// PutAdmin добавляет администратора (администраторы создаются вне API)
func (s *Store) PutAdmin(admin domain.Admin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[admin.AdminID] = admin
}

type adminRepo struct {
	s *Store
}

func (r *adminRepo) GetByID(_ context.Context, adminID string) (*domain.Admin, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	admin, ok := r.s.admins[adminID]
	if !ok {
		return nil, domain.NewNotFoundError("admin", adminID)
	}
	return &admin, nil
}

func (r *adminRepo) GetByEmail(_ context.Context, email string) (*domain.Admin, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, admin := range r.s.admins {
		if strings.EqualFold(admin.Email, email) {
			return &admin, nil
		}
	}
	return nil, domain.NewNotFoundError("admin", email)
}

func (r *adminRepo) Update(_ context.Context, admin *domain.Admin) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.admins[admin.AdminID]; !ok {
		return domain.NewNotFoundError("admin", admin.AdminID)
	}
	r.s.admins[admin.AdminID] = *admin
	return nil
}

type verificationRepo struct {
	s *Store
}

func verificationKey(email string, purpose domain.OTPPurpose) string {
	return string(purpose) + ":" + strings.ToLower(email)
}

func (r *verificationRepo) Upsert(_ context.Context, v *domain.EmailVerification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored := *v
	stored.Email = strings.ToLower(v.Email)
	r.s.verifications[verificationKey(v.Email, v.Purpose)] = stored
	return nil
}

func (r *verificationRepo) Get(_ context.Context, email string, purpose domain.OTPPurpose) (*domain.EmailVerification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	v, ok := r.s.verifications[verificationKey(email, purpose)]
	if !ok {
		return nil, domain.NewNotFoundError("verification", email)
	}
	return &v, nil
}

func (r *verificationRepo) Delete(_ context.Context, email string, purpose domain.OTPPurpose) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.verifications, verificationKey(email, purpose))
	return nil
}

// Revoke реализует TokenDenylist
func (s *Store) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[tokenID] = time.Now().Add(ttl)
	return nil
}

// IsRevoked реализует TokenDenylist
func (s *Store) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	until, ok := s.revoked[tokenID]
	return ok && time.Now().Before(until), nil
}
