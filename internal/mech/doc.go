// Package mech models the two-link articulated mechanism: link
// parameters, the numeric equation-of-motion evaluator bundle (mass
// matrix, Coriolis matrix, bias vector, torque assembly, forward
// kinematics), and a [Model] implementing dynamo.System through a direct
// 2x2 linear solve.
//
// Joint 1 is actuated, joint 2 is passive. Angles are measured from the
// downward vertical; q2 is relative to link 1, so [q1=π, q2=0] is the
// upright configuration.
package mech
