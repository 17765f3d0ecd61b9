package repositories

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
	"gorm.io/gorm"

	"github.com/apibridge-labs/bridge_api/model"
	"github.com/apibridge-labs/bridge_api/shared"
)

// CredentialRepository stores credential payloads sealed with
// ChaCha20-Poly1305 and exposes only decrypted forms to callers.
type CredentialRepository struct {
	BaseRepository
	masterKey []byte
}

func NewCredentialRepository(db *gorm.DB, masterKeyHex string) (*CredentialRepository, error) {
	key, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("credential master key is not valid hex: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("credential master key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}

	return &CredentialRepository{
		BaseRepository: NewBaseRepository(db),
		masterKey:      key,
	}, nil
}

// GetDecryptedCredential fetches the shared credential for a connection, or
// nil when none exists.
func (r *CredentialRepository) GetDecryptedCredential(integrationID, tenantID, connectionID string) (*model.Credential, error) {
	var cred model.Credential
	err := r.db.Where("integration_id = ? AND tenant_id = ? AND connection_id = ?", integrationID, tenantID, connectionID).
		First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if cred.Data, err = r.open(cred.Data); err != nil {
		return nil, fmt.Errorf("unseal credential %s: %w", cred.ID, err)
	}
	if len(cred.RefreshToken) > 0 {
		if cred.RefreshToken, err = r.open(cred.RefreshToken); err != nil {
			return nil, fmt.Errorf("unseal refresh token for credential %s: %w", cred.ID, err)
		}
	}

	return &cred, nil
}

// GetDecryptedUserCredential fetches the end-user credential for a
// connection, or nil when none exists.
func (r *CredentialRepository) GetDecryptedUserCredential(connectionID, appUserID string) (*model.UserCredential, error) {
	var cred model.UserCredential
	err := r.db.Where("connection_id = ? AND app_user_id = ?", connectionID, appUserID).
		First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if cred.Data, err = r.open(cred.Data); err != nil {
		return nil, fmt.Errorf("unseal user credential %s: %w", cred.ID, err)
	}
	if len(cred.RefreshToken) > 0 {
		if cred.RefreshToken, err = r.open(cred.RefreshToken); err != nil {
			return nil, fmt.Errorf("unseal refresh token for user credential %s: %w", cred.ID, err)
		}
	}

	return &cred, nil
}

// ResolveAppUser maps an external app user identity to its internal record.
func (r *CredentialRepository) ResolveAppUser(appID, externalUserID string) (*model.AppUser, error) {
	var user model.AppUser
	err := r.db.Where("app_id = ? AND external_id = ?", appID, externalUserID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SaveCredential seals the payload and upserts the shared credential row.
func (r *CredentialRepository) SaveCredential(cred *model.Credential, payload map[string]interface{}) error {
	raw, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}
	if cred.Data, err = r.seal(raw); err != nil {
		return err
	}
	if len(cred.RefreshToken) > 0 {
		if cred.RefreshToken, err = r.seal(cred.RefreshToken); err != nil {
			return err
		}
	}

	now := time.Now()
	if cred.ID == "" {
		cred.ID = uuid.NewString()
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	return r.db.Save(cred).Error
}

// SaveUserCredential seals the payload and upserts the end-user credential row.
func (r *CredentialRepository) SaveUserCredential(cred *model.UserCredential, payload map[string]interface{}) error {
	raw, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}
	if cred.Data, err = r.seal(raw); err != nil {
		return err
	}
	if len(cred.RefreshToken) > 0 {
		if cred.RefreshToken, err = r.seal(cred.RefreshToken); err != nil {
			return err
		}
	}

	now := time.Now()
	if cred.ID == "" {
		cred.ID = uuid.NewString()
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	return r.db.Save(cred).Error
}

// IsCredentialExpired reports whether the expiry timestamp, if set, has lapsed.
func IsCredentialExpired(expiresAt *time.Time) bool {
	return expiresAt != nil && expiresAt.Before(time.Now())
}

// IsCredentialUsable reports whether a credential may be attached to an
// outbound request: active status and not past expiry.
func IsCredentialUsable(status string, expiresAt *time.Time) bool {
	return status == shared.CredentialStatusActive && !IsCredentialExpired(expiresAt)
}

func (r *CredentialRepository) seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(r.masterKey)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (r *CredentialRepository) open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(r.masterKey)
	if err != nil {
		return nil, err
	}

	if len(sealed) < chacha20poly1305.NonceSize {
		return nil, errors.New("sealed payload too short")
	}

	nonce, ciphertext := sealed[:chacha20poly1305.NonceSize], sealed[chacha20poly1305.NonceSize:]
	return aead.Open(nil, nonce, ciphertext, nil)
}
