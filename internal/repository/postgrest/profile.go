package postgrest

import (
	"context"
	"fmt"

	"github.com/sakif/billing-manager/internal/apperror"
	"github.com/sakif/billing-manager/internal/model"
	"github.com/sakif/billing-manager/internal/repository"
)

// ProfileRepo stores user profile rows in the users table.
type ProfileRepo struct {
	conn *Conn
}

var _ repository.ProfileRepository = (*ProfileRepo)(nil)

func NewProfileRepo(conn *Conn) *ProfileRepo {
	return &ProfileRepo{conn: conn}
}

func (r *ProfileRepo) GetByID(ctx context.Context, accessToken, userID string) (*model.User, error) {
	var rows []model.User
	_, err := r.conn.client(accessToken).
		From(usersTable).
		Select("*", "", false).
		Eq("id", userID).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("postgrest: fetching profile %s: %w", userID, err)
	}
	if len(rows) == 0 {
		return nil, apperror.NotFound("Profile")
	}
	return &rows[0], nil
}

func (r *ProfileRepo) GetByEmail(ctx context.Context, accessToken, email string) (*model.User, error) {
	var rows []model.User
	_, err := r.conn.client(accessToken).
		From(usersTable).
		Select("*", "", false).
		Eq("email", email).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("postgrest: fetching profile by email: %w", err)
	}
	if len(rows) == 0 {
		return nil, apperror.NotFound("Profile")
	}
	return &rows[0], nil
}

func (r *ProfileRepo) Create(ctx context.Context, accessToken string, user *model.User) (*model.User, error) {
	var rows []model.User
	_, err := r.conn.client(accessToken).
		From(usersTable).
		Insert(user, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		if isDuplicate(err) {
			return nil, apperror.Conflict("Profile already exists")
		}
		return nil, fmt.Errorf("postgrest: creating profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("postgrest: creating profile: no row returned")
	}
	return &rows[0], nil
}

func (r *ProfileRepo) Update(ctx context.Context, accessToken, userID string, changes map[string]interface{}) (*model.User, error) {
	var rows []model.User
	_, err := r.conn.client(accessToken).
		From(usersTable).
		Update(changes, "representation", "").
		Eq("id", userID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("postgrest: updating profile %s: %w", userID, err)
	}
	if len(rows) == 0 {
		return nil, apperror.NotFound("Profile")
	}
	return &rows[0], nil
}

// SyncInvoiceStats recalculates the cached counters on the profile row from
// the invoice table, via a stored procedure so the arithmetic happens next
// to the data.
func (r *ProfileRepo) SyncInvoiceStats(ctx context.Context, accessToken, userID string) error {
	client := r.conn.client(accessToken)
	client.Rpc("recalculate_invoice_stats", "", map[string]interface{}{
		"p_user_id": userID,
	})
	if client.ClientError != nil {
		return fmt.Errorf("postgrest: recalculating invoice stats for %s: %w", userID, client.ClientError)
	}
	return nil
}
