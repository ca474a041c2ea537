package service

import (
	"errors"
	"math"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var RoomIdRule = []validation.Rule{
	validation.Required,
	validation.Length(1, 64),
	validation.Match(regexp.MustCompile("^[a-zA-Z0-9_-]+$")),
}

var TimestampRule = []validation.Rule{
	validation.By(func(value interface{}) error {
		ts, _ := value.(float64)
		if math.IsNaN(ts) || math.IsInf(ts, 0) {
			return errors.New("must be a finite number")
		}
		return nil
	}),
	validation.Min(0.0),
}

var QueueItemIdRule = []validation.Rule{
	validation.Required,
	is.UUIDv4,
}

// EndedItemRule accepts either a queue item id or a source url.
var EndedItemRule = []validation.Rule{
	validation.Required,
	validation.Length(1, 2048),
}

var QueryRule = []validation.Rule{
	validation.Required,
	validation.Length(1, 2048),
}

// QueueOrderRule matches a comma separated list of queue item ids. An empty
// order is valid for a queue holding only the playing item.
var QueueOrderRule = []validation.Rule{
	validation.Length(0, 64*1024),
	validation.Match(regexp.MustCompile("^[0-9a-fA-F-]+(,[0-9a-fA-F-]+)*$")),
}
