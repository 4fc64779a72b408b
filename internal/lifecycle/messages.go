package lifecycle

// Catalog holds the user-visible messages for one language.
type Catalog struct {
	Connected        string
	InvalidRoomID    string
	InvalidMode      string
	CapacityExceeded string
	ConnectFailed    string
	MalformedPayload string
	NotInRoom        string
	SendFailed       string
}

var catalogs = map[string]Catalog{
	"ja": {
		Connected:        "接続しました",
		InvalidRoomID:    "ルームIDの形式が違います",
		InvalidMode:      "モードの形式が違います",
		CapacityExceeded: "定員オーバーです",
		ConnectFailed:    "ルームの接続に失敗しました",
		MalformedPayload: "メッセージの形式が違います",
		NotInRoom:        "ルームに参加していません",
		SendFailed:       "メッセージの送信に失敗しました",
	},
	"en": {
		Connected:        "connected",
		InvalidRoomID:    "invalid room id format",
		InvalidMode:      "invalid mode",
		CapacityExceeded: "room is full",
		ConnectFailed:    "failed to join the room",
		MalformedPayload: "malformed message",
		NotInRoom:        "not joined to a room",
		SendFailed:       "failed to send the message",
	},
}

// CatalogFor falls back to Japanese for unknown languages.
func CatalogFor(lang string) Catalog {
	if c, ok := catalogs[lang]; ok {
		return c
	}
	return catalogs["ja"]
}
