package main

import (
	"context"
	"fmt"
	"os"

	"brain-link-tracker/internal/redirect/domain"
	"brain-link-tracker/internal/redirect/usecase"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Links []seedLink `yaml:"links"`
}

type seedLink struct {
	LinkID          string `yaml:"link_id"`
	DestinationURL  string `yaml:"destination_url"`
	TrackingEnabled bool   `yaml:"tracking_enabled"`
	CampaignID      string `yaml:"campaign_id"`
	UTMSource       string `yaml:"utm_source"`
	UTMMedium       string `yaml:"utm_medium"`
	UTMCampaign     string `yaml:"utm_campaign"`
}

// seedLinks upserts the link configurations listed in a YAML file.
func seedLinks(ctx context.Context, repo usecase.LinkRepository, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	for _, l := range f.Links {
		link := domain.LinkConfiguration(l)
		if err := repo.Save(ctx, &link); err != nil {
			return 0, fmt.Errorf("seed link %q: %w", l.LinkID, err)
		}
	}
	return len(f.Links), nil
}
