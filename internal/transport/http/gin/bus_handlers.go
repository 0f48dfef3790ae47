package httpgin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/busgo/internal/domain"
	"github.com/kirinyoku/busgo/internal/gateway"
	"github.com/kirinyoku/busgo/internal/service"
	"github.com/kirinyoku/busgo/internal/service/admin"
)

// @Summary  List buses
// @Success  200 {array} domain.Bus
// @Failure  502 {object} ErrorResponse
// @Router   /buses [get]
func handleListBuses(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		buses, err := svcs.Admin.ListBuses(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, buses, cacheCatalog)
	}
}

// @Summary  Search buses
// @Param    name      query string false "bus name"
// @Param    route     query string false "route"
// @Param    departure query string false "departure time"
// @Param    arrival   query string false "arrival time"
// @Success  200 {array} domain.Bus
// @Router   /buses/search [get]
func handleSearchBuses(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		buses, err := svcs.Admin.SearchBuses(c.Request.Context(), gateway.BusSearch{
			Name:      c.Query("name"),
			Route:     c.Query("route"),
			Departure: c.Query("departure"),
			Arrival:   c.Query("arrival"),
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, buses, cacheCatalog)
	}
}

// @Summary  Get bus
// @Param    id  path  int  true  "Bus ID"
// @Success  200 {object} domain.Bus
// @Failure  404 {object} ErrorResponse
// @Router   /buses/{id} [get]
func handleGetBus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		busID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		bus, err := svcs.Admin.GetBus(c.Request.Context(), busID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, bus, cacheCatalog)
	}
}

// @Summary  List bus seats
// @Description /seats lists all seats, /seats/available the free ones,
// @Description /seats/available/{type} the free ones of one type.
// @Param    id    path  int     true  "Bus ID"
// @Param    type  path  string  false "REGULAR, ELDER or PREGNANT"
// @Success  200 {array} domain.Seat
// @Router   /buses/{id}/seats [get]
func handleListSeats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		busID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		availableOnly := strings.Contains(c.FullPath(), "/available")
		seatType := domain.SeatType(strings.ToUpper(c.Param("type")))

		seats, err := svcs.Admin.Seats(c.Request.Context(), busID, availableOnly, seatType)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, seats, cacheSeats)
	}
}

// @Summary  Seat counts by type
// @Param    id  path  int  true  "Bus ID"
// @Success  200 {object} map[string]int
// @Router   /buses/{id}/seats/count [get]
func handleSeatCounts(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		busID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		counts, err := svcs.Admin.SeatCounts(c.Request.Context(), busID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, counts, cacheSeats)
	}
}

// @Summary  Seat map
// @Param    id        path  int     true  "Bus ID"
// @Param    type      query string  false "seat type, REGULAR by default"
// @Param    selected  query string  false "selected seat number"
// @Success  200 {object} seatmap.Layout
// @Router   /buses/{id}/seatmap [get]
func handleSeatMap(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		busID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		layout, err := svcs.Admin.SeatMap(
			c.Request.Context(),
			busID,
			domain.SeatType(strings.ToUpper(c.Query("type"))),
			c.Query("selected"),
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, layout, cacheSeats)
	}
}

// @Summary  Create bus
// @Param    req body  admin.BusForm true "bus form, departureDate as yyyy-mm-dd"
// @Success  201 {object} domain.Bus
// @Failure  422 {object} ErrorResponse
// @Router   /admin/buses [post]
func handleCreateBus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req admin.BusForm
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		bus, err := svcs.Admin.CreateBus(c.Request.Context(), req)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, bus)
	}
}

// @Summary  Update bus
// @Param    id  path  int  true  "Bus ID"
// @Param    req body  admin.BusForm true "bus form"
// @Success  200 {object} domain.Bus
// @Router   /admin/buses/{id} [put]
func handleUpdateBus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		busID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req admin.BusForm
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		bus, err := svcs.Admin.UpdateBus(c.Request.Context(), busID, req)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, bus)
	}
}

// @Summary  Delete bus
// @Param    id  path  int  true  "Bus ID"
// @Success  204
// @Router   /admin/buses/{id} [delete]
func handleDeleteBus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		busID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Admin.DeleteBus(c.Request.Context(), busID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  List users
// @Success  200 {array} domain.User
// @Router   /admin/users [get]
func handleListUsers(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := svcs.Admin.ListUsers(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

// @Summary  Create user
// @Param    req body  admin.UserForm true "user form"
// @Success  201 {object} domain.User
// @Failure  422 {object} ErrorResponse
// @Router   /admin/users [post]
func handleCreateUser(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req admin.UserForm
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		u, err := svcs.Admin.CreateUser(c.Request.Context(), req)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

// @Summary  Delete user
// @Param    id  path  int  true  "User ID"
// @Success  204
// @Router   /admin/users/{id} [delete]
func handleDeleteUser(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Admin.DeleteUser(c.Request.Context(), userID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Update seat status
// @Param    id  path  int  true  "Seat ID"
// @Param    req body  UpdateSeatStatusRequest true "payload"
// @Success  204
// @Router   /admin/seats/{id}/status [put]
func handleUpdateSeatStatus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		seatID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req UpdateSeatStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svcs.Admin.UpdateSeatStatus(c.Request.Context(), req.BusID, seatID, req.Status); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
