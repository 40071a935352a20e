package database

import (
	"context"
	"fmt"

	"netmon/pkg/models"
	"netmon/pkg/transport"
)

// CredentialResolver resolves a device's credential reference into a
// decrypted credential at session-open time. Plaintext credentials never
// travel on the device descriptor.
type CredentialResolver struct {
	creds     Repository[models.CredentialProfile]
	secretKey string
}

func NewCredentialResolver(creds Repository[models.CredentialProfile], secretKey string) *CredentialResolver {
	return &CredentialResolver{creds: creds, secretKey: secretKey}
}

// Resolve loads and decrypts the credential profile referenced by the device.
func (r *CredentialResolver) Resolve(ctx context.Context, device *models.Device) (transport.Credentials, error) {
	if device.CredentialProfileID == 0 {
		return transport.Credentials{}, fmt.Errorf("device %d has no credential reference", device.ID)
	}

	cred, err := r.creds.Get(ctx, device.CredentialProfileID)
	if err != nil {
		return transport.Credentials{}, fmt.Errorf("load credential profile %d: %w", device.CredentialProfileID, err)
	}

	payload, err := DecryptPayload(cred, r.secretKey)
	if err != nil {
		return transport.Credentials{}, fmt.Errorf("decrypt credential profile %d: %w", cred.ID, err)
	}

	return transport.ParseCredentials(payload)
}
