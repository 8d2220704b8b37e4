package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/safespace/safespace/internal/accounts"
	"github.com/safespace/safespace/internal/config"
	"github.com/safespace/safespace/internal/storage"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo accounts, professionals, and SOP documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed()
	},
}

type seedProfessional struct {
	email          string
	name           string
	proType        string
	specialization string
	city           string
	registryID     string
	degreeFile     string
	university     string
}

func runSeed() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	const demoPassword = "demo-pass-1234"
	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	users := []struct{ email, name string }{
		{"aisha@example.com", "Aisha"},
		{"bilal@example.com", "Bilal"},
	}
	for _, u := range users {
		if err := seedUser(store, u.email, u.name, string(hash), storage.RoleUser); err != nil {
			return err
		}
	}

	professionals := []seedProfessional{
		{
			email:          "dr.fatima@example.com",
			name:           "Dr. Fatima Khan",
			proType:        storage.TypePsychiatrist,
			specialization: "Mood disorders",
			city:           "Lahore",
			registryID:     "PMDC-48213",
		},
		{
			email:          "sara.therapy@example.com",
			name:           "Sara Ahmed",
			proType:        storage.TypeTherapist,
			specialization: "CBT",
			city:           "Karachi",
			degreeFile:     "degrees/sara-ahmed-msc.pdf",
			university:     "University of Karachi",
		},
		{
			email:          "omar.psych@example.com",
			name:           "Omar Malik",
			proType:        storage.TypePsychologist,
			specialization: "Anxiety and trauma",
			city:           "Islamabad",
			degreeFile:     "degrees/omar-malik-phd.pdf",
			university:     "Quaid-i-Azam University",
		},
	}
	for _, p := range professionals {
		if err := seedVerifiedProfessional(store, p, string(hash)); err != nil {
			return err
		}
	}

	if err := seedSOPDocs(store); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Seeded %d users, %d professionals (password %q)\n",
		len(users), len(professionals), demoPassword)
	return nil
}

func seedUser(store *storage.Store, email, name, hash, role string) error {
	if _, err := store.GetUserByEmail(email); err == nil {
		return nil // already seeded
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return store.CreateUser(storage.User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	})
}

func seedVerifiedProfessional(store *storage.Store, p seedProfessional, hash string) error {
	if _, err := store.GetUserByEmail(p.email); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	userID := uuid.New().String()
	if err := store.CreateUser(storage.User{
		ID:           userID,
		Email:        p.email,
		DisplayName:  p.name,
		PasswordHash: hash,
		Role:         storage.RoleProfessional,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		return err
	}

	availabilityJSON, err := accounts.DefaultAvailability().Encode()
	if err != nil {
		return err
	}
	return store.CreateProfessional(storage.Professional{
		ID:               uuid.New().String(),
		UserID:           userID,
		ProfessionalType: p.proType,
		Specialization:   p.specialization,
		City:             p.city,
		AvailabilityJSON: availabilityJSON,
		Verified:         true,
		RegistryID:       p.registryID,
		DegreeFile:       p.degreeFile,
		UniversityName:   p.university,
		CreatedAt:        time.Now().UTC(),
	})
}

func seedSOPDocs(store *storage.Store) error {
	existing, err := store.ListActiveSOPDocs()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	docs := []struct {
		title    string
		category string
		content  string
		keywords []string
	}{
		{
			title:    "Grounding for anxiety",
			category: "anxiety",
			content: "When anxiety builds, try the 5-4-3-2-1 grounding exercise: name five " +
				"things you can see, four you can touch, three you can hear, two you can " +
				"smell, and one you can taste. Slow breathing helps reset your nervous system.",
			keywords: []string{"anxious", "anxiety", "worry", "nervous", "overwhelmed"},
		},
		{
			title:    "Low mood self-care",
			category: "depression",
			content: "Low mood often shrinks your world. Pick one small activity you used to " +
				"enjoy and do it for ten minutes, even without motivation. Keeping a regular " +
				"sleep and meal schedule also steadies mood over time.",
			keywords: []string{"sad", "depressed", "hopeless", "empty", "unmotivated", "tired"},
		},
		{
			title:    "Riding out a panic attack",
			category: "panic",
			content: "A panic attack peaks and passes, usually within minutes. Breathe out " +
				"longer than you breathe in, relax your shoulders, and remind yourself that " +
				"the sensations are frightening but not dangerous.",
			keywords: []string{"panic", "heart racing", "can't breathe", "chest tight"},
		},
		{
			title:    "Better sleep habits",
			category: "sleep",
			content: "Keep a consistent wake time, avoid screens for an hour before bed, and " +
				"get out of bed if you have been awake more than twenty minutes. The bed " +
				"should be for sleep, not for worrying.",
			keywords: []string{"sleep", "insomnia", "awake", "nightmares", "restless"},
		},
	}

	now := time.Now().UTC()
	for i, d := range docs {
		kw, err := json.Marshal(d.keywords)
		if err != nil {
			return err
		}
		doc := storage.SOPDoc{
			ID:          uuid.New().String(),
			Title:       d.title,
			Category:    d.category,
			Content:     d.content,
			Keywords:    string(kw),
			Active:      true,
			EffectiveAt: now.Add(time.Duration(i) * time.Minute),
			CreatedBy:   "seed",
			CreatedAt:   now,
		}
		if err := store.CreateSOPDoc(doc); err != nil {
			return err
		}
	}
	return nil
}
