package dto

import (
	"time"

	"github.com/shopspring/decimal"

	pgrepo "github.com/olegbarsky/digistore/internal/repo/postgres"
)

type PurchaseCreateRequest struct {
	ProjectID     int64  `json:"projectId"`
	TransactionID string `json:"transactionId,omitempty"`
	IsCompleted   bool   `json:"isCompleted,omitempty"`
}

type PurchaseCompleteRequest struct {
	TransactionID string `json:"transactionId"`
}

type PurchaseResponse struct {
	ID             int64            `json:"id"`
	ProjectID      int64            `json:"projectId"`
	UserID         int64            `json:"userId"`
	Amount         decimal.Decimal  `json:"amount"`
	CryptoCurrency string           `json:"cryptoCurrency"`
	TransactionID  *string          `json:"transactionId,omitempty"`
	PurchaseDate   time.Time        `json:"purchaseDate"`
	IsCompleted    bool             `json:"isCompleted"`
	Project        *ProjectResponse `json:"project,omitempty"`
	User           *UserResponse    `json:"user,omitempty"`
}

type ProjectResponse struct {
	ID               int64           `json:"id"`
	Title            string          `json:"title"`
	ShortDescription string          `json:"shortDescription,omitempty"`
	Price            decimal.Decimal `json:"price"`
	CryptoCurrency   string          `json:"cryptoCurrency"`
	ThumbnailURL     string          `json:"thumbnailUrl,omitempty"`
	DownloadURL      string          `json:"downloadUrl,omitempty"`
}

type UserResponse struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

func NewPurchaseResponse(record pgrepo.PurchaseRecord) PurchaseResponse {
	return PurchaseResponse{
		ID:             record.ID,
		ProjectID:      record.ProjectID,
		UserID:         record.UserID,
		Amount:         record.Amount,
		CryptoCurrency: record.CryptoCurrency,
		TransactionID:  record.TransactionID,
		PurchaseDate:   record.PurchasedAt,
		IsCompleted:    record.IsCompleted,
	}
}

func NewPurchaseWithProjectResponse(record pgrepo.PurchaseWithProject, downloadURL string) PurchaseResponse {
	response := NewPurchaseResponse(record.PurchaseRecord)
	project := NewProjectResponse(record.Project)
	project.DownloadURL = downloadURL
	response.Project = &project
	return response
}

func NewPurchaseDetailResponse(record pgrepo.PurchaseDetail) PurchaseResponse {
	response := NewPurchaseResponse(record.PurchaseRecord)
	project := NewProjectResponse(record.Project)
	response.Project = &project
	response.User = &UserResponse{
		ID:        record.User.ID,
		Email:     record.User.Email,
		FirstName: record.User.FirstName,
		LastName:  record.User.LastName,
	}
	return response
}

func NewProjectResponse(project pgrepo.ProjectRecord) ProjectResponse {
	return ProjectResponse{
		ID:               project.ID,
		Title:            project.Title,
		ShortDescription: project.ShortDescription,
		Price:            project.Price,
		CryptoCurrency:   project.CryptoCurrency,
		ThumbnailURL:     project.ThumbnailURL,
	}
}
