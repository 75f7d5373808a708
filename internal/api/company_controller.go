package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"rechnung/server/internal/models"
)

// CompanyStore is implemented by *services.CompanyService
type CompanyStore interface {
	Get(ctx context.Context) (models.CompanyInfo, error)
	Update(ctx context.Context, info models.CompanyInfo) (models.CompanyInfo, error)
}

type CompanyController struct {
	companies CompanyStore
}

func NewCompanyController(companies CompanyStore) *CompanyController {
	return &CompanyController{companies: companies}
}

// GET /api/company
func (cc *CompanyController) Get(c *gin.Context) {
	info, err := cc.companies.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// PUT /api/company
func (cc *CompanyController) Update(c *gin.Context) {
	var info models.CompanyInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		badRequest(c, err)
		return
	}
	saved, err := cc.companies.Update(c.Request.Context(), info)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}
