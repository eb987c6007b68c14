package francetravail

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Workplace is the offer's advertised location.
type Workplace struct {
	Libelle    string `json:"libelle,omitempty"`
	CodePostal string `json:"codePostal,omitempty"`
	Commune    string `json:"commune,omitempty"`
}

// Company is the hiring employer as the job board reports it.
type Company struct {
	Nom         string `json:"nom,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

type Salary struct {
	Libelle string `json:"libelle,omitempty"`
}

type OfferOrigin struct {
	URLOrigine string `json:"urlOrigine,omitempty"`
}

// Offer is a single job posting, keyed by the board-assigned id. The
// relevance and applied fields are engine-added annotations, set in place
// after retrieval.
type Offer struct {
	ID                 string      `json:"id,omitempty"`
	Intitule           string      `json:"intitule,omitempty"`
	Description        string      `json:"description,omitempty"`
	DateCreation       string      `json:"dateCreation,omitempty"`
	LieuTravail        Workplace   `json:"lieuTravail,omitempty"`
	Entreprise         Company     `json:"entreprise,omitempty"`
	TypeContrat        string      `json:"typeContrat,omitempty"`
	TypeContratLibelle string      `json:"typeContratLibelle,omitempty"`
	ExperienceLibelle  string      `json:"experienceLibelle,omitempty"`
	Salaire            Salary      `json:"salaire,omitempty"`
	DureeTravail       string      `json:"dureeTravailLibelle,omitempty"`
	OrigineOffre       OfferOrigin `json:"origineOffre,omitempty"`

	RelevanceScore     int    `json:"relevance_score"`
	RelevanceReasoning string `json:"relevance_reasoning,omitempty"`
	IsApplied          bool   `json:"is_applied"`
}

type Offers struct {
	Items []*Offer
}

func (o *Offers) Len() int {
	return len(o.Items)
}

func (o *Offers) IDs() []string {
	ids := make([]string, 0, len(o.Items))
	for _, offer := range o.Items {
		ids = append(ids, offer.ID)
	}
	return ids
}

func (o *Offers) FindByID(id string) *Offer {
	for _, offer := range o.Items {
		if offer.ID == id {
			return offer
		}
	}
	return nil
}

func (o *Offers) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "offers_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(o); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// ReportByEmployer groups the offers by employer name for presentation.
// Relevance fields only appear once the ranker has annotated the offer.
func (o *Offers) ReportByEmployer() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, offer := range o.Items {
		key := offer.Entreprise.Nom
		if key == "" {
			key = "(unknown employer)"
		}

		entry := map[string]string{
			"title":    offer.Intitule,
			"url":      offer.OrigineOffre.URLOrigine,
			"place":    offer.LieuTravail.Libelle,
			"contract": offer.TypeContrat,
			"salary":   offer.Salaire.Libelle,
		}
		if offer.RelevanceReasoning != "" {
			entry["relevance"] = strconv.Itoa(offer.RelevanceScore)
			entry["reasoning"] = offer.RelevanceReasoning
		}
		if offer.IsApplied {
			entry["applied"] = "true"
		}

		report[key] = append(report[key], entry)
	}
	return report
}

// Summary renders a compact one-line description of the offer.
func (of *Offer) Summary() string {
	place := of.LieuTravail.Libelle
	if place == "" {
		place = "n/a"
	}
	return fmt.Sprintf("%s | %s | %s", of.Intitule, of.Entreprise.Nom, place)
}
