package usecases

import (
	"context"
	"strings"

	"project_citabot/internal/entities"
)

// PersonalityService manages the AI personas of a user.
type PersonalityService struct {
	store PersonalityStore
}

func NewPersonalityService(store PersonalityStore) *PersonalityService {
	return &PersonalityService{store: store}
}

func normalizePersonality(p *entities.Personality) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Company = strings.TrimSpace(p.Company)
	if p.Name == "" {
		return invalid("nombre es requerido")
	}
	if strings.TrimSpace(p.Instructions) == "" {
		return invalid("instrucciones son requeridas")
	}
	return nil
}

// Create stores a personality. The user's first personality becomes the
// default one.
func (s *PersonalityService) Create(ctx context.Context, userID int, p *entities.Personality) error {
	p.UserID = userID
	if err := normalizePersonality(p); err != nil {
		return err
	}
	if !p.IsDefault {
		existing, err := s.store.GetDefault(ctx, userID)
		if err != nil {
			return err
		}
		p.IsDefault = existing == nil
	}
	return s.store.Create(ctx, p)
}

func (s *PersonalityService) Update(ctx context.Context, userID int, p *entities.Personality) error {
	p.UserID = userID
	if err := normalizePersonality(p); err != nil {
		return err
	}
	ok, err := s.store.Update(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Personalidad no encontrada")
	}
	return nil
}

func (s *PersonalityService) Delete(ctx context.Context, userID int, id int64) error {
	ok, err := s.store.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Personalidad no encontrada")
	}
	return nil
}

func (s *PersonalityService) Get(ctx context.Context, userID int, id int64) (*entities.Personality, error) {
	p, err := s.store.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, notFound("Personalidad no encontrada")
	}
	return p, nil
}

func (s *PersonalityService) List(ctx context.Context, userID int) ([]entities.Personality, error) {
	return s.store.List(ctx, userID)
}

func (s *PersonalityService) Media(ctx context.Context, userID int, personalityID int64) ([]entities.PersonalityMedia, error) {
	if _, err := s.Get(ctx, userID, personalityID); err != nil {
		return nil, err
	}
	return s.store.ListMedia(ctx, userID, personalityID)
}

func (s *PersonalityService) DeleteMedia(ctx context.Context, userID int, id int64) error {
	ok, err := s.store.DeleteMedia(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Archivo no encontrado")
	}
	return nil
}
