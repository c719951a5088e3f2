package handler

import "lifeline/internal/lifecycle/models"

type UserResponse struct {
	User *models.User `json:"user"`
}

type UsersResponse struct {
	Users []*models.User `json:"users"`
}

type DonorsResponse struct {
	Donors []*models.User `json:"donors"`
}

type RequestResponse struct {
	Request *models.Request `json:"request"`
}

type RequestsResponse struct {
	Requests []*models.Request `json:"requests"`
}

type SyncResponse struct {
	Users    []*models.User    `json:"users"`
	Requests []*models.Request `json:"requests"`
}

func nonNilUsers(users []*models.User) []*models.User {
	if users == nil {
		return []*models.User{}
	}
	return users
}

func nonNilRequests(reqs []*models.Request) []*models.Request {
	if reqs == nil {
		return []*models.Request{}
	}
	return reqs
}
