package services

import (
	"context"
	"strings"

	"github.com/diewo77/invoicing/internal/models"
	"github.com/diewo77/invoicing/internal/store"
	"github.com/sirupsen/logrus"
)

type ClientService struct {
	store store.ClientStore
	log   logrus.FieldLogger
}

func NewClientService(st store.ClientStore, log logrus.FieldLogger) *ClientService {
	return &ClientService{store: st, log: log.WithField("service", "client")}
}

// Create stores a new client. A duplicate email yields a ConflictError.
func (s *ClientService) Create(ctx context.Context, c *models.Client) (*models.Client, error) {
	c.ID = 0
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateClient(ctx, c); err != nil {
		return nil, err
	}
	s.log.WithField("client_id", c.ID).Info("client created")
	return c, nil
}

// Update overwrites every field of client id with c.
func (s *ClientService) Update(ctx context.Context, id uint, c *models.Client) (*models.Client, error) {
	c.ID = id
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.SaveClient(ctx, c); err != nil {
		return nil, err
	}
	s.log.WithField("client_id", id).Info("client updated")
	return c, nil
}

func (s *ClientService) Get(ctx context.Context, id uint) (*models.Client, error) {
	return s.store.FindClient(ctx, id)
}

func (s *ClientService) GetByEmail(ctx context.Context, email string) (*models.Client, error) {
	return s.store.FindClientByEmail(ctx, email)
}

func (s *ClientService) List(ctx context.Context) ([]models.Client, error) {
	return s.store.ListClients(ctx)
}

// Search matches term against name and email, case-insensitively.
// An empty term lists every client.
func (s *ClientService) Search(ctx context.Context, term string) ([]models.Client, error) {
	if strings.TrimSpace(term) == "" {
		return s.store.ListClients(ctx)
	}
	return s.store.SearchClients(ctx, term)
}

// Delete removes a client that no invoice references.
func (s *ClientService) Delete(ctx context.Context, id uint) error {
	if err := s.store.DeleteClient(ctx, id); err != nil {
		return err
	}
	s.log.WithField("client_id", id).Info("client deleted")
	return nil
}
