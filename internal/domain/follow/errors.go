package follow

import "github.com/okian/matchbar/internal/domain/model"

// ErrInvalidTeam is returned for input that does not name a team number.
var ErrInvalidTeam = model.ErrInvalidTeam
