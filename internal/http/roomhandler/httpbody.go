package roomhandler

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type RoomPath struct {
	RoomID string `uri:"roomId" binding:"required"`
	Mode   string `uri:"mode"   binding:"required"`
} // @name RoomPath

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
} // @name HealthResponse
