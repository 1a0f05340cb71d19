package dto

// SignupRequest тело POST /auth/signup.
type SignupRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Name     string `json:"name" form:"name"`
}

// VerifyEmailRequest тело POST /auth/verify-email.
type VerifyEmailRequest struct {
	Email string `json:"email" form:"email"`
	Code  string `json:"code" form:"code"`
}

// EmailRequest тело запросов, где нужен только email (resend, forgot-password).
// Email может прийти и в query string.
type EmailRequest struct {
	Email string `json:"email" form:"email"`
}

// LoginRequest тело POST /auth/login.
type LoginRequest struct {
	Email      string `json:"email" form:"email"`
	Password   string `json:"password" form:"password"`
	RememberMe bool   `json:"remember_me" form:"remember_me"`
}

// ResetPasswordRequest тело POST /auth/reset-password.
type ResetPasswordRequest struct {
	Token       string `json:"token" form:"token"`
	NewPassword string `json:"new_password" form:"new_password"`
}

// UpdateProfileRequest тело PUT /auth/me. Отсутствующие поля не меняются.
type UpdateProfileRequest struct {
	Name     *string `json:"name"`
	Username *string `json:"username"`
	Bio      *string `json:"bio"`
	Picture  *string `json:"picture"`
}

// AppleCallbackForm форма, которую Apple присылает методом form_post.
type AppleCallbackForm struct {
	IDToken string `form:"id_token"`
	Code    string `form:"code"`
	User    string `form:"user"`
	State   string `form:"state"`
	Error   string `form:"error"`
}
