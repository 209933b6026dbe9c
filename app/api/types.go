package api

import (
	"github.com/edobrenko/bgg-warehouse/app/database"
)

type Handler struct {
	catalogRepo    database.CatalogRepository
	leaseRepo      database.LeaseRepository
	responseRepo   database.ResponseRepository
	processRepo    database.ProcessRepository
	gameRepo       database.GameRepository
	requestLogRepo database.RequestLogRepository
	version        string
}
